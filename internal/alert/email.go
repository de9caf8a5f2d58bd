package alert

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	mail "github.com/wneessen/go-mail"
)

// Alert is one flagged mention ready for delivery.
type Alert struct {
	Leader  string
	Text    string
	Context string
	URL     string
	Score   float64
}

// Notifier delivers one alert email per run.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// EmailNotifier submits the alert over SMTP with STARTTLS.
type EmailNotifier struct {
	host   string
	port   int
	from   string
	pass   string
	to     string
	logger *zap.SugaredLogger
}

func NewEmailNotifier(host string, port int, from, pass, to string, logger *zap.SugaredLogger) *EmailNotifier {
	return &EmailNotifier{host: host, port: port, from: from, pass: pass, to: to, logger: logger}
}

// Notify sends one email listing every alert, grouped by leader and source
// URL. It is a no-op when there is nothing to report. Transport errors are
// returned as-is; there is no retry.
func (n *EmailNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("invalid from address %q: %w", n.from, err)
	}
	if err := msg.To(n.to); err != nil {
		return fmt.Errorf("invalid to address %q: %w", n.to, err)
	}
	msg.Subject(Subject(alerts))
	msg.SetBodyString(mail.TypeTextPlain, Body(alerts))

	client, err := mail.NewClient(n.host,
		mail.WithPort(n.port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.from),
		mail.WithPassword(n.pass),
	)
	if err != nil {
		return fmt.Errorf("creating SMTP client for %s: %w", n.host, err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending alert email: %w", err)
	}

	n.logger.Infow("Alert email sent", "to", n.to, "alerts", len(alerts))
	return nil
}

// Subject carries the flagged-mention count.
func Subject(alerts []Alert) string {
	return fmt.Sprintf("Negative mentions detected (%d)", len(alerts))
}

// Body renders the alerts grouped by leader, then by source URL, in stable
// order.
func Body(alerts []Alert) string {
	byLeader := make(map[string][]Alert)
	var leaders []string
	for _, a := range alerts {
		if _, ok := byLeader[a.Leader]; !ok {
			leaders = append(leaders, a.Leader)
		}
		byLeader[a.Leader] = append(byLeader[a.Leader], a)
	}
	sort.Strings(leaders)

	var b strings.Builder
	for _, leader := range leaders {
		fmt.Fprintf(&b, "Leader: %s\n", leader)
		group := byLeader[leader]
		sort.SliceStable(group, func(i, j int) bool { return group[i].URL < group[j].URL })
		for _, a := range group {
			fmt.Fprintf(&b, "Score: %.2f\n", a.Score)
			fmt.Fprintf(&b, "Comment snippet: %s\n", a.Text)
			fmt.Fprintf(&b, "Post URL: %s\n", a.URL)
			b.WriteString("---\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
