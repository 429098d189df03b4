package source

// Builtin is the default source table. Selectors drift as boards redesign
// their pages; deployments override the table with SOURCES_FILE instead of
// editing this list.
var Builtin = []Descriptor{
	{
		Name:          "LinkedIn",
		URLTemplate:   "https://www.linkedin.com/jobs/search?keywords={{q .Role}}&location={{q .Location}}&start={{mul .Page 25}}&f_TPR=r86400",
		BaseURL:       "https://www.linkedin.com",
		LinkSelector:  "a.base-card__full-link, a.job-card-list__title",
		TitleSelector: "span.sr-only, h3.base-search-card__title",
	},
	{
		Name:         "Naukri",
		URLTemplate:  "https://www.naukri.com/{{slug .Role}}-jobs-in-{{slug .Location}}?k={{q .Role}}&l={{q .Location}}&pageNo={{.PageNum}}",
		BaseURL:      "https://www.naukri.com",
		LinkSelector: "a.title, a[data-job-id]",
	},
	{
		Name:          "Indeed",
		URLTemplate:   "https://www.indeed.com/jobs?q={{q .Role}}&l={{q .Location}}&fromage=1&start={{mul .Page 10}}",
		BaseURL:       "https://www.indeed.com",
		LinkSelector:  "a[data-jk], a[href*='/viewjob']",
		TitleSelector: "h2.jobTitle, span[title]",
	},
	{
		Name:              "Glassdoor",
		URLTemplate:       "https://www.glassdoor.com/Job/jobs.htm?sc.keyword={{q .Role}}&locKeyword={{q .Location}}&fromAge=1&p={{.PageNum}}",
		BaseURL:           "https://www.glassdoor.com",
		LinkSelector:      "a[data-test='job-link'], a.jobLink, a[data-test='job-title']",
		TitleSelector:     "div[data-test='job-title'], a[data-test='job-title']",
		RequiresScripting: true,
	},
	{
		Name:         "Monster",
		URLTemplate:  "https://www.monster.com/jobs/search?q={{q .Role}}&where={{q .Location}}&page={{.PageNum}}&postedDate=1",
		BaseURL:      "https://www.monster.com",
		LinkSelector: "a[data-test-id='svx-job-title'], a[data-testid='jobTitle']",
	},
	{
		Name:              "ZipRecruiter",
		URLTemplate:       "https://www.ziprecruiter.com/jobs-search?search={{q .Role}}&location={{q .Location}}&page={{.PageNum}}&days=1",
		BaseURL:           "https://www.ziprecruiter.com",
		LinkSelector:      "a.job_link, a[data-testid='job-title']",
		TitleSelector:     "h2, h3",
		RequiresScripting: true,
	},
	{
		Name:         "SimplyHired",
		URLTemplate:  "https://www.simplyhired.com/search?q={{q .Role}}&l={{q .Location}}&t=1&pn={{.PageNum}}",
		BaseURL:      "https://www.simplyhired.com",
		LinkSelector: "a[data-testid='job-title'], a.SerpJob-link",
	},
	{
		Name:          "CareerBuilder",
		URLTemplate:   "https://www.careerbuilder.com/jobs?keywords={{q .Role}}&location={{q .Location}}&posted=1&page_number={{.PageNum}}",
		BaseURL:       "https://www.careerbuilder.com",
		LinkSelector:  "a.data-results-content, a[data-testid='job-title']",
		TitleSelector: "h2, h3",
	},
	{
		Name:          "Google Jobs",
		URLTemplate:   "https://www.google.com/search?q={{q .Role}}+jobs+{{q .Location}}&tbm=job&tbs=qdr:d&start={{mul .Page 10}}",
		BaseURL:       "https://www.google.com",
		LinkSelector:  "a[href*='/url?q='], a[data-ved]",
		TitleSelector: "h3, h4",
		UnwrapParam:   "q",
		URLKeywords:   []string{"job", "career", "hiring", "position"},
		MaxResults:    20,
		PageCap:       1,
	},
}
