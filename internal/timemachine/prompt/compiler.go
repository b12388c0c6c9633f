package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bdobrica/timemachine/common/runes"
	"github.com/bdobrica/timemachine/internal/timemachine/length"
	"github.com/bdobrica/timemachine/internal/timemachine/llm"
	"github.com/bdobrica/timemachine/internal/timemachine/memory"
	"github.com/bdobrica/timemachine/internal/timemachine/observability"
)

// History rendering limits.
const (
	HistoryExchanges  = 3
	historyReplyChars = 200
)

// NoHistory is rendered in place of an empty conversation.
const NoHistory = "This is the beginning of our conversation."

// Compiler builds turn prompts for one persona and sends them to the model.
// It holds no per-turn state.
type Compiler struct {
	persona Persona
	gen     llm.Generator
}

// NewCompiler returns a Compiler for p. Empty persona fields take defaults.
func NewCompiler(p Persona, gen llm.Generator) *Compiler {
	return &Compiler{persona: p.WithDefaults(), gen: gen}
}

// Persona returns the persona in use.
func (c *Compiler) Persona() Persona { return c.persona }

// Compile assembles the prompt for query: persona instructions, length
// guidance, knowledge context, recent history, the question and a closing
// instruction.
func (c *Compiler) Compile(query string, g length.Guidance, knowledge string, history []memory.Exchange) string {
	var sb strings.Builder

	sb.WriteString(c.persona.Instructions)
	sb.WriteString("\n\n")

	sb.WriteString("RESPONSE GUIDANCE:\n")
	fmt.Fprintf(&sb, "- Target length: %d-%d characters\n", g.Min, g.Max)
	fmt.Fprintf(&sb, "- Detail level: %s\n", g.DetailLevel)
	fmt.Fprintf(&sb, "- Specific guidance: %s\n", g.Directive)
	if g.Source == length.AIPowered {
		fmt.Fprintf(&sb, "IMPORTANT: An AI system has analyzed this query and determined the optimal response "+
			"length is %d-%d characters for maximum information density and user engagement. "+
			"Please aim for this length range while providing a complete, natural response.\n", g.Min, g.Max)
	}
	sb.WriteString("\n")

	sb.WriteString("RELEVANT KNOWLEDGE CONTEXT:\n")
	sb.WriteString(knowledge)
	sb.WriteString("\n\n")

	sb.WriteString("CONVERSATION HISTORY:\n")
	sb.WriteString(RenderHistory(history))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "USER QUESTION: %s\n\n", query)

	fmt.Fprintf(&sb, "Please respond as %s, following the response guidance above. "+
		"Draw from your knowledge, experiences, and the provided context. "+
		"Provide a complete answer: do not stop mid-sentence and do not end with trailing dots. "+
		"Make the response feel natural and finished within the target length range.", c.persona.Name)
	return sb.String()
}

// RenderHistory shows the last HistoryExchanges exchanges, each reply cut to
// its first 200 characters.
func RenderHistory(history []memory.Exchange) string {
	if len(history) == 0 {
		return NoHistory
	}
	if len(history) > HistoryExchanges {
		history = history[len(history)-HistoryExchanges:]
	}
	lines := make([]string, 0, 2*len(history))
	for _, ex := range history {
		reply := ex.AssistantText
		if runes.Len(reply) > historyReplyChars {
			reply = runes.Truncate(reply, historyReplyChars) + "..."
		}
		lines = append(lines, "User asked: "+ex.UserText, "You responded: "+reply)
	}
	return strings.Join(lines, "\n")
}

// Reply is the outcome of one generation call. When Failed is set, Text is
// one of the persona's apologies and must not be recorded as an exchange.
type Reply struct {
	Text   string
	Failed bool
	Err    error
}

// Generate sends prompt to the model. An empty answer yields the rephrase
// apology; any other failure yields the clouded apology. It never returns
// an empty Text.
func (c *Compiler) Generate(ctx context.Context, prompt string) Reply {
	text, err := c.gen.Generate(ctx, prompt)
	text = strings.TrimSpace(text)
	switch {
	case errors.Is(err, llm.ErrEmptyReply) || (err == nil && text == ""):
		if err == nil {
			err = llm.ErrEmptyReply
		}
		observability.WithTrace(ctx).Warn("prompt: empty reply from model")
		return Reply{Text: c.persona.RephraseApology, Failed: true, Err: err}
	case err != nil:
		observability.WithTrace(ctx).Error("prompt: generation failed", "err", err)
		return Reply{Text: c.persona.CloudedApology, Failed: true, Err: err}
	}
	return Reply{Text: text}
}

// IntroductionPrompt asks for a brief first-meeting introduction.
func (c *Compiler) IntroductionPrompt() string {
	return c.persona.Instructions + "\n\n" +
		fmt.Sprintf("Please introduce yourself as %s to someone you are meeting for the first time. "+
			"Keep it brief but characteristic of your personality and speaking style.", c.persona.Name)
}

// Introduce returns the persona's self-introduction, or one of its fixed
// fallbacks when the model answers with nothing or fails.
func (c *Compiler) Introduce(ctx context.Context) string {
	text, err := c.gen.Generate(ctx, c.IntroductionPrompt())
	text = strings.TrimSpace(text)
	switch {
	case err != nil && !errors.Is(err, llm.ErrEmptyReply):
		observability.WithTrace(ctx).Error("prompt: introduction failed", "err", err)
		return c.persona.IntroErrorFallback
	case text == "":
		return c.persona.IntroFallback
	}
	return text
}
