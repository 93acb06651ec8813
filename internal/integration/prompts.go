package integration

import (
	"fmt"
	"sort"
	"strings"
)

// TemplateConfig shapes the test case prompt.
type TemplateConfig struct {
	Count            int    `json:"count,omitempty"`  // desired number of test cases, 0 lets the model decide
	Format           string `json:"format,omitempty"` // "steps" or "gherkin"
	Priority         string `json:"priority,omitempty"`
	Focus            string `json:"focus,omitempty"`
	IncludeNegative  bool   `json:"includeNegative,omitempty"`
	IncludeEdgeCases bool   `json:"includeEdgeCases,omitempty"`
}

const testCaseSystemPrompt = `You are a senior QA engineer. You write precise, reproducible test cases
and reply with JSON only, no prose and no markdown.`

const bugReportSystemPrompt = `You are a senior QA engineer. You turn short problem descriptions into
complete, actionable bug reports and reply with JSON only, no prose and no markdown.`

const testCaseSchema = `{"testCases":[{"title":"","type":"functional|integration|negative|edge case|performance|security",
"priority":"high|medium|low","preconditions":"","steps":[""],"expectedResult":"",
"automationPotential":"high|medium|low","tags":[""]}]}`

const bugReportSchema = `{"title":"","description":"","severity":"critical|high|medium|low",
"category":"functional|ui|performance|security|data|integration","stepsToReproduce":[""],
"expectedBehavior":"","actualBehavior":"","environment":"","workaround":"","suggestedTestCases":[""]}`

// BuildTestCasePrompt renders the prompt for a test case generation.
func BuildTestCasePrompt(content, title string, tc TemplateConfig) string {
	var b strings.Builder
	b.WriteString("Generate test cases for the following requirements document.\n\n")
	if title != "" {
		fmt.Fprintf(&b, "Document: %s\n\n", title)
	}
	b.WriteString("Requirements:\n")
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n\nGuidelines:\n")

	if tc.Count > 0 {
		fmt.Fprintf(&b, "- Produce exactly %d test cases.\n", tc.Count)
	} else {
		b.WriteString("- Produce as many test cases as needed to cover the requirements.\n")
	}
	if strings.EqualFold(tc.Format, "gherkin") {
		b.WriteString("- Write each step as a Given/When/Then clause.\n")
	} else {
		b.WriteString("- Write each step as one concrete user action.\n")
	}
	if tc.IncludeNegative {
		b.WriteString("- Include negative test cases for invalid input and error paths.\n")
	}
	if tc.IncludeEdgeCases {
		b.WriteString("- Include edge cases for boundaries and unusual data.\n")
	}
	if tc.Priority != "" {
		fmt.Fprintf(&b, "- Default priority: %s.\n", tc.Priority)
	}
	if tc.Focus != "" {
		fmt.Fprintf(&b, "- Focus on: %s.\n", tc.Focus)
	}
	b.WriteString("- Rate automationPotential high only for deterministic, repeatable checks.\n")

	b.WriteString("\nReply with JSON matching this shape:\n")
	b.WriteString(testCaseSchema)
	return b.String()
}

// BuildBugReportPrompt renders the prompt for a bug report generation.
// Context entries are listed in key order.
func BuildBugReportPrompt(description, consoleError string, context map[string]string) string {
	var b strings.Builder
	b.WriteString("Write a bug report for the problem below.\n\n")
	if description != "" {
		b.WriteString("Problem description:\n")
		b.WriteString(strings.TrimSpace(description))
		b.WriteString("\n\n")
	}
	if consoleError != "" {
		b.WriteString("Console output:\n")
		b.WriteString(strings.TrimSpace(consoleError))
		b.WriteString("\n\n")
	}
	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Context:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, context[k])
		}
		b.WriteString("\n")
	}
	b.WriteString("Suggest test cases that would have caught this bug.\n")
	b.WriteString("\nReply with JSON matching this shape:\n")
	b.WriteString(bugReportSchema)
	return b.String()
}
