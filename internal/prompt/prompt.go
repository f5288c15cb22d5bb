package prompt

import (
	"fmt"
	"strings"

	_ "embed"
)

// Kind identifies one of the supported analysis outputs.
type Kind string

const (
	KindFullAnalysis       Kind = "Full Analysis"
	KindAnalyzeSkills      Kind = "Analyze Skills"
	KindATSScore           Kind = "ATS Score"
	KindCoverLetter        Kind = "Cover Letter"
	KindRewriteResume      Kind = "Rewrite Resume"
	KindInterviewQuestions Kind = "Interview Questions"
)

// Kinds lists every supported analysis kind in display order.
func Kinds() []Kind {
	return []Kind{
		KindFullAnalysis,
		KindAnalyzeSkills,
		KindATSScore,
		KindCoverLetter,
		KindRewriteResume,
		KindInterviewQuestions,
	}
}

// Valid reports whether k is a recognized analysis kind.
func (k Kind) Valid() bool {
	_, ok := templates[k]
	return ok
}

// SystemInstruction is sent with every generation request.
const SystemInstruction = "You are an expert Executive Career Coach. Your goal is to position candidates for growth and management roles, not just their current level. Focus on leadership, strategy, and ownership. When evaluating skills, if a candidate has used a tool (like SQL) but isn't an expert, frame it as 'Applied Knowledge' or 'Practical Experience' rather than 'Basic'."

var (
	//go:embed prompts/full_analysis.txt
	fullAnalysisTemplate string
	//go:embed prompts/analyze_skills.txt
	analyzeSkillsTemplate string
	//go:embed prompts/ats_score.txt
	atsScoreTemplate string
	//go:embed prompts/cover_letter.txt
	coverLetterTemplate string
	//go:embed prompts/rewrite_resume.txt
	rewriteResumeTemplate string
	//go:embed prompts/interview_questions.txt
	interviewQuestionsTemplate string
)

var templates = map[Kind]string{
	KindFullAnalysis:       fullAnalysisTemplate,
	KindAnalyzeSkills:      analyzeSkillsTemplate,
	KindATSScore:           atsScoreTemplate,
	KindCoverLetter:        coverLetterTemplate,
	KindRewriteResume:      rewriteResumeTemplate,
	KindInterviewQuestions: interviewQuestionsTemplate,
}

// ErrUnknownKind is returned when an analysis kind has no template.
var ErrUnknownKind = fmt.Errorf("unknown analysis kind")

// Build expands the template for kind with the given resume and job texts.
// The kind enumeration is closed: an unmapped kind is an error, never an
// empty prompt.
func Build(resumeText, jobText string, kind Kind) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}
	replacer := strings.NewReplacer(
		"{{RESUME_TEXT}}", resumeText,
		"{{JOB_DESCRIPTION}}", jobText,
	)
	return replacer.Replace(tmpl), nil
}
