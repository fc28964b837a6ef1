package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// Tones accepted by AdjustTone.
var Tones = []string{"professional", "formal", "friendly", "legal"}

var generatePrompt = template.Must(template.New("generate").Parse(`Generate a professional {{.DocumentType}} document with the following information:

**Your Company:**
- Name: {{.CompanyName}}
- Address: {{.CompanyAddress}}
- Contact: {{.ContactName}}
- Email: {{.ContactEmail}}
- Phone: {{.ContactPhone}}

**Client Company:**
- Name: {{.ClientCompanyName}}
- Address: {{.ClientAddress}}
- Contact: {{.ClientContactName}}
- Email: {{.ClientContactEmail}}
- Phone: {{.ClientContactPhone}}

**Project Details:**
- Description: {{.ProjectDescription}}
- Amount/Value: {{.Amount}}
- Duration: {{.Duration}}

**Terms & Conditions:**
{{.Terms}}

**Additional Notes:**
{{.AdditionalNotes}}

Please generate a complete, professional document with proper formatting, legal language where appropriate, and all necessary sections. Return only the document content without any code block markers or formatting prefixes.`))

var (
	openingFence = regexp.MustCompile("^```\\w*\\n?")
	closingFence = regexp.MustCompile("\\n?```$")
	plainPrefix  = regexp.MustCompile(`^plaintext\n?`)
	boldMarkers  = regexp.MustCompile(`\*\*(.*?)\*\*`)
)

// CleanGenerated strips the markdown wrapping agents tend to add around
// generated documents.
func CleanGenerated(s string) string {
	s = openingFence.ReplaceAllString(s, "")
	s = closingFence.ReplaceAllString(s, "")
	s = plainPrefix.ReplaceAllString(s, "")
	s = boldMarkers.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// GenerateDocument drafts a document from the authoring form.
func (c *Client) GenerateDocument(ctx context.Context, form FormData) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}
	var prompt strings.Builder
	if err := generatePrompt.Execute(&prompt, form); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	out, err := c.Call(ctx, RoleContentGenerator, prompt.String())
	if err != nil {
		return "", err
	}
	return CleanGenerated(out), nil
}

// ValidTone reports whether tone is one of Tones.
func ValidTone(tone string) bool {
	for _, t := range Tones {
		if t == tone {
			return true
		}
	}
	return false
}

// AdjustTone rewrites content in the requested tone. Unknown tones fail before
// any call is made.
func (c *Client) AdjustTone(ctx context.Context, content, tone string) (string, error) {
	if !ValidTone(tone) {
		return "", fmt.Errorf("%w: %q", ErrUnknownTone, tone)
	}
	prompt := fmt.Sprintf("Please adjust the tone of the following document to be more %s. "+
		"Preserve all factual information, dates, and legal requirements while modifying the language style:\n\n%s",
		tone, content)
	return c.Call(ctx, RoleToneAdjuster, prompt)
}

func (c *Client) GenerateLegalClauses(ctx context.Context, documentType, requirements string) (string, error) {
	prompt := fmt.Sprintf("Generate appropriate legal clauses for a %s document with the following requirements:\n\n%s\n\n"+
		"Please include standard clauses for: confidentiality/NDA, termination conditions, intellectual property rights, "+
		"liability limitations, dispute resolution, and governing law.",
		documentType, requirements)
	return c.Call(ctx, RoleLegalClauses, prompt)
}

func (c *Client) RegenerateSection(ctx context.Context, section, instructions, fullDocument string) (string, error) {
	prompt := fmt.Sprintf("Please regenerate the following section of the document with these instructions: %s\n\n"+
		"**Full Document Context:**\n%s\n\n**Section to Regenerate:**\n%s\n\n"+
		"Please maintain consistency with the document's tone and style.",
		instructions, fullDocument, section)
	return c.Call(ctx, RoleSectionRegenerator, prompt)
}

// ValidateDocument asks the validator agent for review feedback.
func (c *Client) ValidateDocument(ctx context.Context, content string) (string, error) {
	prompt := "Please review the following document for completeness, consistency, and potential issues. " +
		"Provide specific feedback on areas that need improvement:\n\n" + content
	return c.Call(ctx, RoleValidator, prompt)
}

// AnalyzeDocument summarizes an uploaded reference file. It shares the
// validator agent.
func (c *Client) AnalyzeDocument(ctx context.Context, content, fileName string) (string, error) {
	prompt := fmt.Sprintf("Please analyze the following document and provide insights, key points, and recommendations:\n\n"+
		"**File Name:** %s\n**Content:**\n%s\n\n"+
		"Please provide a comprehensive analysis including key findings, important sections, and actionable insights.",
		fileName, content)
	return c.Call(ctx, RoleValidator, prompt)
}
