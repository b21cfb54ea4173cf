// internal/service/notification/dispatcher.go
package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"crm-service/internal/domain/config"
	"crm-service/internal/domain/lead"
	"crm-service/internal/domain/notification"
	"crm-service/internal/pkg/metrics"

	"go.uber.org/zap"
)

//go:embed templates/*
var templateFS embed.FS

var (
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
)

// Mailer is the outbound mail transport.
type Mailer interface {
	Send(ctx context.Context, m notification.Mail) error
}

// SettingsSource provides the sender address and the sales roster.
type SettingsSource interface {
	Get(ctx context.Context) (*config.SaleConfiguration, error)
	SalesTeam(ctx context.Context, companyID int64) (*config.SalesTeam, error)
}

// Dispatcher sends the mails that follow a new lead: one to the owning
// company's sales team and one thanking the contact.
type Dispatcher struct {
	mailer      Mailer
	settings    SettingsSource
	defaultFrom string
	leadURL     func(id int64) string
	logger      *zap.Logger
}

func NewDispatcher(mailer Mailer, settings SettingsSource, defaultFrom, baseURL string, logger *zap.Logger) *Dispatcher {
	base := strings.TrimRight(baseURL, "/")
	return &Dispatcher{
		mailer:      mailer,
		settings:    settings,
		defaultFrom: defaultFrom,
		leadURL: func(id int64) string {
			return fmt.Sprintf("%s/sales/opportunity/lead/%d", base, id)
		},
		logger: logger,
	}
}

type mailData struct {
	PartyName   string
	ContactName string
	Email       string
	Phone       string
	Country     string
	IPAddress   string
	Description string
	Comment     string
	LeadURL     string
}

func (d *Dispatcher) dataFor(l *lead.Lead) mailData {
	country := l.CountryCode.String
	if country == "" {
		country = l.DetectedCountry.String
	}
	return mailData{
		PartyName:   l.PartyName,
		ContactName: l.ContactName,
		Email:       l.Email.String,
		Phone:       l.Phone.String,
		Country:     country,
		IPAddress:   l.IPAddress.String,
		Description: l.Description,
		Comment:     l.Comment.String,
		LeadURL:     d.leadURL(l.ID),
	}
}

// LeadCreated notifies the sales team, then thanks the contact. Each side is
// skipped when it has nobody to write to. Transport errors are returned
// as-is and nothing is retried.
func (d *Dispatcher) LeadCreated(ctx context.Context, l *lead.Lead) error {
	settings, err := d.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sale configuration: %w", err)
	}

	if err := d.notifySalesTeam(ctx, l); err != nil {
		return err
	}
	return d.thankContact(ctx, l, settings)
}

func (d *Dispatcher) notifySalesTeam(ctx context.Context, l *lead.Lead) error {
	if !l.CompanyID.Valid {
		d.logger.Debug("lead has no company, skipping sales notification", zap.Int64("lead_id", l.ID))
		return nil
	}

	team, err := d.settings.SalesTeam(ctx, l.CompanyID.Int64)
	if err != nil {
		return fmt.Errorf("failed to load sales team: %w", err)
	}

	receivers := make([]string, 0, len(team.Emails))
	for _, e := range team.Emails {
		if e = strings.TrimSpace(e); e != "" {
			receivers = append(receivers, e)
		}
	}
	if len(receivers) == 0 {
		d.logger.Debug("sales team is empty, skipping notification", zap.Int64("company_id", l.CompanyID.Int64))
		return nil
	}

	m, err := d.compose(notification.KindNewLead, "new_lead", d.dataFor(l))
	if err != nil {
		return err
	}
	m.From = d.defaultFrom
	m.To = receivers
	m.Subject = fmt.Sprintf("[CRM] New lead created by %s", l.PartyName)

	return d.send(ctx, m, l.ID)
}

func (d *Dispatcher) thankContact(ctx context.Context, l *lead.Lead, settings *config.SaleConfiguration) error {
	if !l.Email.Valid || strings.TrimSpace(l.Email.String) == "" {
		return nil
	}

	from := d.defaultFrom
	if settings.OpportunityEmail.Valid && settings.OpportunityEmail.String != "" {
		from = settings.OpportunityEmail.String
	}

	m, err := d.compose(notification.KindThankYou, "thank_you", d.dataFor(l))
	if err != nil {
		return err
	}
	m.From = from
	m.To = []string{l.Email.String}
	m.Subject = "Thank you for contacting us"

	return d.send(ctx, m, l.ID)
}

func (d *Dispatcher) compose(kind notification.Kind, name string, data mailData) (notification.Mail, error) {
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return notification.Mail{}, fmt.Errorf("failed to render %s text: %w", name, err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return notification.Mail{}, fmt.Errorf("failed to render %s html: %w", name, err)
	}
	return notification.Mail{Kind: kind, TextBody: text.String(), HTMLBody: html.String()}, nil
}

func (d *Dispatcher) send(ctx context.Context, m notification.Mail, leadID int64) error {
	if err := d.mailer.Send(ctx, m); err != nil {
		metrics.RecordNotification(string(m.Kind), "failed")
		d.logger.Error("failed to send lead mail",
			zap.String("kind", string(m.Kind)),
			zap.Int64("lead_id", leadID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send %s mail: %w", m.Kind, err)
	}

	metrics.RecordNotification(string(m.Kind), "sent")
	d.logger.Info("lead mail sent",
		zap.String("kind", string(m.Kind)),
		zap.Int64("lead_id", leadID),
		zap.Strings("to", m.To),
	)
	return nil
}
