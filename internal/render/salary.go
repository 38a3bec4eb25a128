package render

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

const competitiveSalary = "Competitive salary"

var currencySymbols = map[string]string{
	"EUR": "€",
	"GBP": "£",
	"USD": "$",
}

var numbers = message.NewPrinter(language.English)

// Salary formats the range as "€60,000 - €80,000", or a neutral phrase when
// the range is unknown or hidden.
func Salary(job vacancy.Job) string {
	if !job.ShowSalary() {
		return competitiveSalary
	}
	prefix, ok := currencySymbols[job.Currency()]
	if !ok {
		prefix = job.Currency() + " "
	}
	return numbers.Sprintf("%s%d - %s%d",
		prefix, int64(math.Round(*job.SalaryMin)),
		prefix, int64(math.Round(*job.SalaryMax)))
}
