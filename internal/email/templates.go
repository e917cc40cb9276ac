package email

const emailStyle = `
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Noto Sans Devanagari', sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #7a3e9d; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #7a3e9d; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #7a3e9d; }
        .warning { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
        table.slot td { padding: 4px 12px 4px 0; }`

const verificationEmailHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Verify your {{.AppName}} account</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <h2>Welcome, {{.UserName}}!</h2>
    <p>Thank you for signing up. Please verify your email address to activate your account.</p>
    <p><a href="{{.VerificationURL}}" class="button">Verify Email Address</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.VerificationURL}}</p>
    <p>This verification link will expire in 24 hours.</p>
    <div class="footer">
        <p>If you didn't create an account with {{.AppName}}, you can safely ignore this email.</p>
    </div>
</body>
</html>`

const passwordResetEmailHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Reset your {{.AppName}} password</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <h2>Password Reset Request</h2>
    <p>Hi {{.UserName}},</p>
    <p>We received a request to reset your password. Click the button below to create a new password:</p>
    <p><a href="{{.ResetURL}}" class="button">Reset Password</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.ResetURL}}</p>
    <div class="warning"><strong>Important:</strong> This reset link will expire in 1 hour. Resetting your password signs you out on every device.</div>
    <div class="footer">
        <p>If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.</p>
    </div>
</body>
</html>`

const appointmentEmailHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your consultation with {{.LawyerName}}</title>
    <style>` + emailStyle + `</style>
</head>
<body>
    <div class="header"><h1>{{.AppName}}</h1></div>
    <h2>Appointment {{.Status}}</h2>
    <p>Hi {{.UserName}},</p>
    <p>Your consultation with <strong>{{.LawyerName}}</strong> is {{.Status}}.</p>
    <table class="slot">
        <tr><td>When</td><td>{{.When}} ({{.Relative}})</td></tr>
        <tr><td>Duration</td><td>{{.Duration}} minutes</td></tr>
        <tr><td>Mode</td><td>{{.ModeLabel}}</td></tr>
    </table>
    <div class="footer">
        <p>You can cancel pending or confirmed appointments from your dashboard.</p>
    </div>
</body>
</html>`
