package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/jsvoboda/notes-api/internal/logging"
)

// Service sends OTP mail over SMTP. Dispatch is synchronous in the
// request path: OTP latency is bounded by transport latency, and a
// failure is surfaced to the caller.
type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
}

func NewService(smtpHost, smtpPort, smtpUser, smtpPassword string) *Service {
	return &Service{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUser:     smtpUser,
		smtpPassword: smtpPassword,
		fromEmail:    smtpUser,
	}
}

// SendOTPEmail delivers a one-time passcode to the user.
func (s *Service) SendOTPEmail(ctx context.Context, toEmail, otp string) error {
	logger := logging.GetLoggerFromContext(ctx)

	subject := "Your OTP Code"
	body, err := renderOTPEmailTemplate(otp)
	if err != nil {
		logger.Error("failed to render otp email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, subject, body); err != nil {
		logger.Error("failed to send otp email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("otp email sent", "email", toEmail)
	return nil
}

func (s *Service) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: \"Notes App\" <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromEmail, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return smtp.SendMail(addr, auth, s.fromEmail, []string{to}, msg)
}

var otpTemplate = template.Must(template.New("otp").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .code {
            display: inline-block;
            background-color: #f1f1f1;
            font-size: 32px;
            letter-spacing: 8px;
            padding: 12px 24px;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
        }
    </style>
</head>
<body>
    <h2>Your one-time passcode</h2>
    <p>Use this code to finish signing in to Notes App:</p>

    <div class="code">{{.OTP}}</div>

    <p>The code expires in 5 minutes. If you didn't request it, you can safely ignore this email.</p>
    <div class="footer">
        <p>&copy; 2026 Notes App. All rights reserved.</p>
    </div>
</body>
</html>
`))

func renderOTPEmailTemplate(otp string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		OTP string
	}{
		OTP: otp,
	}

	if err := otpTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
