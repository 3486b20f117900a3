package notification

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
)

const (
	subjectApproved = "🎉 SwasthLink - Your Registration is Approved!"
	subjectRejected = "SwasthLink - Registration Update"
)

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="margin:0;padding:0;font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;background-color:#f4f7fa;">
<table width="100%" cellpadding="0" cellspacing="0" style="max-width:600px;margin:0 auto;background-color:#ffffff;">
<tr><td style="background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);padding:40px 30px;text-align:center;">
<h1 style="color:#ffffff;margin:0;font-size:32px;">🏥 SwasthLink</h1>
<p style="color:rgba(255,255,255,0.9);margin:10px 0 0 0;font-size:14px;">Your Health, Our Priority</p>
</td></tr>
<tr><td style="padding:30px;text-align:center;">{{template "content" .}}</td></tr>
<tr><td style="background-color:#1f2937;padding:30px;text-align:center;">
<p style="color:#9ca3af;margin:0 0 10px 0;font-size:14px;">Need help? Contact us at <a href="mailto:{{.SupportEmail}}" style="color:#667eea;">{{.SupportEmail}}</a></p>
<p style="color:#6b7280;margin:0;font-size:12px;">© SwasthLink. All rights reserved.</p>
</td></tr>
</table>
</body>
</html>`

const approvedContent = `{{define "content"}}
<h2 style="color:#1f2937;margin:0 0 15px 0;font-size:24px;">Congratulations, {{.Name}}! 🎉</h2>
<p style="color:#6b7280;font-size:16px;line-height:1.6;">Your registration as a <strong style="color:#667eea;">{{.Role}}</strong>
on SwasthLink has been <span style="color:#10b981;font-weight:600;">approved</span> by our admin team.</p>
<div style="background-color:#f0f9ff;border:2px solid #0ea5e9;border-radius:12px;padding:25px;margin:25px 0;text-align:left;">
<h3 style="color:#0369a1;margin:0 0 15px 0;font-size:18px;text-align:center;">🔐 Your Login Credentials</h3>
<table width="100%" cellpadding="8" cellspacing="0" style="font-size:15px;">
<tr><td style="color:#64748b;width:40%;">Mobile number:</td><td style="color:#1e293b;font-weight:600;">{{.Login}}</td></tr>
<tr><td style="color:#64748b;">Password:</td><td style="color:#1e293b;font-weight:600;font-family:monospace;">{{.Password}}</td></tr>
</table>
<p style="color:#dc2626;margin:15px 0 0 0;font-size:13px;text-align:center;">⚠️ Please change your password after first login for security.</p>
</div>
{{end}}`

const rejectedContent = `{{define "content"}}
<h2 style="color:#1f2937;margin:0 0 15px 0;font-size:24px;">Registration Update</h2>
<p style="color:#6b7280;font-size:16px;line-height:1.6;">Dear <strong>{{.Name}}</strong>,<br><br>
We regret to inform you that your registration as a <strong style="color:#667eea;">{{.Role}}</strong>
on SwasthLink could not be approved at this time.</p>
<div style="background-color:#fef2f2;border:1px solid #fecaca;border-radius:12px;padding:20px;margin:25px 0;">
<p style="color:#991b1b;margin:0;font-size:15px;">Please review your submitted documents and details.</p>
</div>
<div style="background-color:#fffbeb;border:1px solid #fde68a;border-radius:12px;padding:20px;margin:25px 0;">
<p style="color:#92400e;margin:0;font-size:15px;">If you believe this is a mistake, contact our support team.</p>
</div>
{{end}}`

var (
	approvedTmpl = template.Must(template.Must(template.New("approved").Parse(layout)).Parse(approvedContent))
	rejectedTmpl = template.Must(template.Must(template.New("rejected").Parse(layout)).Parse(rejectedContent))
)

type emailData struct {
	Name         string
	Role         string
	Login        string
	Password     string
	SupportEmail string
}

// roleTitle renders "hospital-doctor" as "Hospital Doctor".
func roleTitle(r model.Role) string {
	words := strings.Fields(strings.ReplaceAll(string(r), "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return "User"
	}
	return strings.Join(words, " ")
}

// renderDecision returns the subject and body for a decision, or ok=false
// when the status is not one users are told about.
func renderDecision(user *model.User, status model.ApprovalStatus, supportEmail string) (subject, body string, ok bool, err error) {
	data := emailData{
		Name:         user.DisplayName(),
		Role:         roleTitle(user.Role),
		Login:        user.MobileNumber,
		Password:     user.DefaultPassword(),
		SupportEmail: supportEmail,
	}

	var tmpl *template.Template
	switch status {
	case model.ApprovalApproved:
		subject, tmpl = subjectApproved, approvedTmpl
	case model.ApprovalRejected:
		subject, tmpl = subjectRejected, rejectedTmpl
	default:
		return "", "", false, nil
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", false, err
	}
	return subject, buf.String(), true, nil
}
