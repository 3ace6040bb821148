package mailer

import (
	"fmt"
	"strings"

	"coaching-rag-be/internal/dto"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendRetentionReport(report *dto.CleanupResponse) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	recipients  []string
}

func NewEmailService(host string, port int, username, password, senderName string, recipients []string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: username,
		senderName:  senderName,
		recipients:  recipients,
	}
}

func (s *emailService) SendRetentionReport(report *dto.CleanupResponse) error {
	if len(s.recipients) == 0 {
		return nil
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", s.recipients...)
	m.SetHeader("Subject", retentionSubject(report))
	m.SetBody("text/html", retentionBody(report))

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send retention report to %s: %v\n", strings.Join(s.recipients, ","), err)
		return err
	}

	fmt.Printf("[MAILER] Retention report sent to %d recipients\n", len(s.recipients))
	return nil
}

func retentionSubject(report *dto.CleanupResponse) string {
	status := "completed"
	if !report.Success {
		status = "incomplete"
	}
	if report.Options.DryRun {
		status += " (dry run)"
	}
	return fmt.Sprintf("Conversation retention sweep %s", status)
}

func retentionBody(report *dto.CleanupResponse) string {
	var failed strings.Builder
	for _, f := range report.Result.Failed {
		failed.WriteString(fmt.Sprintf("<li><code>%s</code>: %s</li>", f.SessionId, f.Error))
	}
	if failed.Len() == 0 {
		failed.WriteString("<li>none</li>")
	}

	return fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Retention sweep report</h2>
			<p>Run at %s with days_old=%d, batch_size=%d.</p>
			<table cellpadding="4">
				<tr><td>Sessions past the horizon</td><td>%d</td></tr>
				<tr><td>Sessions deleted</td><td>%d</td></tr>
				<tr><td>Messages deleted</td><td>%d</td></tr>
				<tr><td>Chunk references deleted</td><td>%d</td></tr>
				<tr><td>Batches run</td><td>%d</td></tr>
			</table>
			<p>Failed sessions:</p>
			<ul>%s</ul>
		</div>
	`,
		report.Timestamp.Format("2006-01-02 15:04:05 MST"),
		report.Options.DaysOld,
		report.Options.BatchSize,
		report.ScheduledSessionsFound,
		report.Result.SessionsDeleted,
		report.Result.MessagesDeleted,
		report.Result.ChunkRefsDeleted,
		report.Result.BatchesRun,
		failed.String(),
	)
}
