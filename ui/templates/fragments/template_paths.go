// Package fragments provides template path constants for organized template management
package fragments

import "strings"

// Template path constants, relative to ui/templates
const (
	// Pages
	IndexPage   = "index.html"
	WizardPage  = "wizard.html"
	HistoryPage = "history.html"
	HelpPage    = "help.html"
	ErrorPage   = "error.html"

	// Layout templates
	Header = "layout/header.html"
	Footer = "layout/footer.html"

	// Wizard templates
	WizardPanel  = "wizard/panel.html"
	WizardSteps  = "wizard/steps.html"
	WizardFields = "wizard/fields.html"
	WizardChecks = "wizard/checks.html"
	WizardResult = "wizard/result.html"

	// Dataset templates
	DatasetPreview = "dataset/preview.html"

	// Status templates
	Toasts = "status/toasts.html"
)

// GetAllTemplatePaths returns all template paths for registration
func GetAllTemplatePaths() []string {
	return []string{
		// Pages
		IndexPage,
		WizardPage,
		HistoryPage,
		HelpPage,
		ErrorPage,

		// Layout
		Header,
		Footer,

		// Wizard
		WizardPanel,
		WizardSteps,
		WizardFields,
		WizardChecks,
		WizardResult,

		// Dataset
		DatasetPreview,

		// Status
		Toasts,
	}
}

// IsPage reports whether a template renders a full HTML document.
func IsPage(templatePath string) bool {
	return !strings.Contains(templatePath, "/")
}

// GetTemplateCategory returns the category for a given template path
func GetTemplateCategory(templatePath string) string {
	switch {
	case strings.HasPrefix(templatePath, "layout/"):
		return "layout"
	case strings.HasPrefix(templatePath, "wizard/"):
		return "wizard"
	case strings.HasPrefix(templatePath, "dataset/"):
		return "dataset"
	case strings.HasPrefix(templatePath, "status/"):
		return "status"
	case IsPage(templatePath):
		return "page"
	default:
		return "unknown"
	}
}
