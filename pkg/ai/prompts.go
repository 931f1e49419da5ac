package ai

import (
	"fmt"

	"certhub-backend/pkg/extractor"
)

// Bodies are flattened and cut before prompting; certificate mails put the
// useful text near the top.
const maxPromptBody = 6000

func promptBody(body string) string {
	text := extractor.FlattenHTML(body)
	if len(text) > maxPromptBody {
		text = text[:maxPromptBody]
	}
	return text
}

func skillsPrompt(body, subject string) string {
	return fmt.Sprintf(`You are analyzing a certificate completion email. Extract ONLY the key technical skills, technologies, or competencies learned from this course.

Email Subject: %s
Email Content: %s

Instructions:
1. Focus on technical skills, programming languages, frameworks, tools, or methodologies
2. Return a concise comma-separated list (maximum 8 items)
3. Use proper capitalization (e.g., "Python", "Machine Learning", "React.js")
4. Avoid generic terms like "problem solving" or "teamwork"
5. If it's a business/soft skills course, extract the main business competencies
6. If no clear skills are found, return "%s"

Format your response as: Skill1, Skill2, Skill3, etc.

Skills learned:`, subject, promptBody(body), extractor.DefaultSkills)
}

func courseNamePrompt(body, subject string) string {
	return fmt.Sprintf(`Extract the exact course or certification name from this email.

Email Subject: %s
Email Content: %s

Instructions:
1. Return ONLY the course name, nothing else
2. Remove generic words like "Certificate", "Completion", "Congratulations"
3. Keep the specific course title as mentioned in the email
4. If multiple courses mentioned, pick the main one
5. Maximum 100 characters

Course name:`, subject, promptBody(body))
}

const pingPrompt = `Hello, respond with just "OK" if you can hear me.`
