package email

import "fmt"

// DatabaseAccessEmail builds the message carrying the single-use contractor
// database link
func DatabaseAccessEmail(baseURL, token string) (subject, body string) {
	link := fmt.Sprintf("%s/database-access?token=%s", baseURL, token)
	subject = "Your GovCon Contractor Database Access"
	body = fmt.Sprintf(`<h2>Your contractor database access is ready</h2>
<p>Thank you for your purchase. Click the link below to open the contractor database:</p>
<p><a href="%s">Access the Contractor Database</a></p>
<p>This link is tied to your purchase email. If you have any trouble, reply to this email and we will get you sorted.</p>`, link)
	return subject, body
}

// HunterProWelcomeEmail builds the Opportunity Hunter Pro onboarding message
func HunterProWelcomeEmail(baseURL string) (subject, body string) {
	subject = "Welcome to Opportunity Hunter Pro"
	body = fmt.Sprintf(`<h2>Welcome to Opportunity Hunter Pro</h2>
<p>Your account is active. Sign in with your purchase email to start tracking opportunities:</p>
<p><a href="%s/opportunity-hunter">Open Opportunity Hunter Pro</a></p>`, baseURL)
	return subject, body
}

// UltimateBundleWelcomeEmail builds the Ultimate GovCon Bundle onboarding
// message listing everything the bundle unlocks
func UltimateBundleWelcomeEmail(baseURL string) (subject, body string) {
	subject = "Your Ultimate GovCon Bundle is Active"
	body = fmt.Sprintf(`<h2>Your Ultimate GovCon Bundle is active</h2>
<p>You now have access to:</p>
<ul>
<li>Content Reaper (Full Fix tier)</li>
<li>Contractor Database</li>
<li>Recompete Contracts</li>
<li>Market Assassin Premium</li>
</ul>
<p>Sign in with your purchase email at <a href="%s">%s</a> to get started.</p>`, baseURL, baseURL)
	return subject, body
}

// ProductAccessEmail builds a generic access notification naming the product
func ProductAccessEmail(baseURL, displayName string) (subject, body string) {
	subject = fmt.Sprintf("Your %s Access", displayName)
	body = fmt.Sprintf(`<h2>Your %s access is active</h2>
<p>Sign in with your purchase email at <a href="%s">%s</a> to get started.</p>`, displayName, baseURL, baseURL)
	return subject, body
}
