package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

type GeminiService struct {
	ApiKey string
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{ApiKey: apiKey}
}

const extractPrompt = `You are extracting the EMPLOYER NAME that the applicant applied to from a job application *confirmation* email.

Use the following signals in this priority order:
1) SUBJECT - often has "Thank you for applying to <Company>" or "Thank You for Applying to <Company>".
2) BODY (snippet) - may say "Thank you for applying to <Company>".
3) FROM - may be an ATS (e.g., Greenhouse/Lever/Workday) or the employer's domain.

Rules:
- Return the company the candidate applied to (the employer), NOT the ATS/platform (e.g., return "Bubble", not "Greenhouse").
- If SUBJECT clearly contains "... applying to <Company>", prefer that exact company from SUBJECT.
- Normalize to a clean brand form:
  - Title Case words
  - Remove common legal suffixes (Inc, LLC, Ltd, GmbH, Co., PLC, S.A., Pte. Ltd., etc) if they appear.
  - Keep meaningful parentheticals, e.g., "Amazon Web Services (AWS)" -> return "Amazon Web Services (AWS)".
- If you are unsure or the employer is not stated, return null. Do NOT guess.

Return JSON ONLY in this exact schema:
{
  "company": "Acme"
}
where "company" is null if unclear.

EXAMPLES (what to return as "company"):
- SUBJECT: "Thank you for applying to AppLovin" -> "AppLovin"
- SUBJECT: "Thank You for Applying to Mesh!" -> "Mesh"
- SUBJECT: "Thank you for applying to Cambridge Mobile Telematics" -> "Cambridge Mobile Telematics"
- SUBJECT: "Your application has been received" + BODY: "...applying to Stripe..." -> "Stripe"
- SUBJECT: "We received your application" + BODY: "...to Goldman Sachs" -> "Goldman Sachs"
- SUBJECT: "Job alerts for you" -> null

NOW EXTRACT for this message:

SUBJECT: %s
FROM: %s
BODY: %s`

// ExtractCompany asks Gemini for the employer named in a confirmation
// email. It returns "" when the model cannot tell or replies with something
// other than the requested JSON schema.
func (g *GeminiService) ExtractCompany(ctx context.Context, snippet, subject, from string) (string, error) {
	// gemini-2.0-flash is fast enough to run inline in the sync pass
	url := "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent?key=" + g.ApiKey

	prompt := fmt.Sprintf(extractPrompt, subject, from, snippet)

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API error: %s", string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}

	text, ok := candidateText(result)
	if !ok {
		return "", fmt.Errorf("no candidate text returned")
	}

	return ParseCompanyReply(text)
}

// candidateText digs the first candidate's text out of a generateContent
// response.
func candidateText(result map[string]interface{}) (string, bool) {
	if c, ok := result["candidates"].([]interface{}); ok && len(c) > 0 {
		if cand, ok := c[0].(map[string]interface{}); ok {
			if content, ok := cand["content"].(map[string]interface{}); ok {
				if parts, ok := content["parts"].([]interface{}); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]interface{}); ok {
						if text, ok := part["text"].(string); ok {
							return text, true
						}
					}
				}
			}
		}
	}
	return "", false
}

var fenceOpenRe = regexp.MustCompile("(?i)^```(?:json)?\\s*")

// ParseCompanyReply decodes the model's `{"company": ...}` answer,
// stripping a fenced code block if the model wrapped its reply in one.
// A reply that is not valid JSON yields ("", nil): the caller falls back to
// a placeholder rather than failing the pass.
func ParseCompanyReply(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = fenceOpenRe.ReplaceAllString(text, "")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var reply struct {
		Company *string `json:"company"`
	}
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		return "", nil
	}
	if reply.Company == nil {
		return "", nil
	}
	return strings.TrimSpace(*reply.Company), nil
}
