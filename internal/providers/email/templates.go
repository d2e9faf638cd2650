package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

const TemplateInviteMember = "invite_member"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Render executes a named template and derives the subject line. A "subject"
// entry in a map payload takes precedence over the template default.
func Render(templateName string, data interface{}) (string, string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, templateName+".html", data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}
	return subjectFor(templateName, data), body.String(), nil
}

// RenderMessage renders a template into a message addressed to the recipients.
func RenderMessage(to []string, templateName string, data interface{}) (Message, error) {
	subject, body, err := Render(templateName, data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, HTML: body}, nil
}

func subjectFor(templateName string, data interface{}) string {
	subject := "Notification from Identity"
	dataMap, ok := data.(map[string]interface{})
	if !ok {
		return subject
	}
	if subj, ok := dataMap["subject"].(string); ok && subj != "" {
		return subj
	}
	switch templateName {
	case TemplateInviteMember:
		if orgName, ok := dataMap["org_name"].(string); ok && orgName != "" {
			return fmt.Sprintf("You're invited to join %s", orgName)
		}
		return "You're invited to join an organization"
	}
	return subject
}
