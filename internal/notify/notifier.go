// Package notify tells requesters when their certificate artifacts are ready.
// Delivery is best-effort: the pipeline records a warning on failure but the
// result is never degraded by an undeliverable mail.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"urbacert/pkg/email"
)

// Notification describes one completed certificate run.
type Notification struct {
	Recipients  []string
	ParcelLabel string
	INSEE       string
	ReportPath  string
	MapPath     string
}

// Notifier delivers a completion notification to every recipient.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Subject renders the notification subject line for a parcel label.
func Subject(parcelLabel string) string {
	if parcelLabel == "" {
		parcelLabel = "Dossier"
	}
	return fmt.Sprintf("[CUA] Rapport disponible — %s", parcelLabel)
}

var bodyTemplate = template.Must(template.New("report_ready").Parse(`<html>
<body>
<p>Bonjour{{if .Name}} {{.Name}}{{end}},</p>
<p>Le certificat d'urbanisme demandé pour la parcelle
<strong>{{if .ParcelLabel}}{{.ParcelLabel}}{{else}}—{{end}}</strong>
(commune INSEE {{.INSEE}}) est disponible.</p>
<ul>
{{if .ReportPath}}<li>Rapport : {{.ReportPath}}</li>{{end}}
{{if .MapPath}}<li>Carte : {{.MapPath}}</li>{{end}}
</ul>
<p>Ceci est un message automatique, merci de ne pas y répondre.</p>
</body>
</html>
`))

// RenderBody builds the HTML body for one recipient, greeting them by the
// name derived from their address.
func RenderBody(recipient string, n Notification) (string, error) {
	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, struct {
		Name        string
		ParcelLabel string
		INSEE       string
		ReportPath  string
		MapPath     string
	}{
		Name:        email.DeriveNameFromEmail(recipient),
		ParcelLabel: n.ParcelLabel,
		INSEE:       n.INSEE,
		ReportPath:  n.ReportPath,
		MapPath:     n.MapPath,
	})
	if err != nil {
		return "", fmt.Errorf("render notification body: %w", err)
	}
	return buf.String(), nil
}
