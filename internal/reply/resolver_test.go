package reply

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/internal/rules"
)

// templateMap holds templates of the workspace "ws".
type templateMap map[model.TemplateID]string

func (m templateMap) FetchTemplate(ctx context.Context, workspaceID model.WorkspaceID, id model.TemplateID) (*model.Template, error) {
	body, ok := m[id]
	if !ok || workspaceID != "ws" {
		return nil, model.ErrorNotFound
	}
	return &model.Template{ID: id, WorkspaceID: workspaceID, Body: body}, nil
}

type fakeGenerator struct {
	reply  string
	err    error
	system string
	prompt string
	calls  int
}

func (g *fakeGenerator) Generate(ctx context.Context, system string, prompt string) (string, error) {
	g.calls++
	g.system = system
	g.prompt = prompt
	return g.reply, g.err
}

var comment = model.CommentEvent{ID: "c1", Text: "is there a discount?", AuthorUsername: "jo"}

func TestSubstitute(t *testing.T) {
	assert := assert.New(t)

	vars := map[string]string{"username": "jo", "code": "SAVE10"}
	assert.Equal("Hi jo, use SAVE10", Substitute("Hi {{username}}, use {{ code }}", vars))
	assert.Equal("Hi jo {{unknown}}", Substitute("Hi {{username}} {{unknown}}", vars))
	assert.Equal("{{username", Substitute("{{username", vars))
	assert.Equal("jo jo", Substitute("{{username}} {{username}}", vars))
}

func TestTruncate(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("short", Truncate("short", 10))
	assert.Equal("exactly10!", Truncate("exactly10!", 10))
	assert.Equal("abcdefg...", Truncate("abcdefghijk", 10))
	assert.Equal(10, utf8.RuneCountInString(Truncate(strings.Repeat("ü", 30), 10)))
	assert.Equal("ab", Truncate("abcdef", 2))
}

func TestResolveRuleText(t *testing.T) {
	assert := assert.New(t)

	resolver := NewResolver(templateMap{}, nil, 0)
	rule := &model.Rule{ID: "r1", ReplyText: "Thanks {{username}}! You said: {{comment}} {{missing}}"}

	text, err := resolver.Resolve(context.Background(), Request{Rule: rule, Comment: comment})
	assert.Nil(err)
	assert.Equal("Thanks jo! You said: is there a discount? {{missing}}", text)
}

func TestResolveTemplate(t *testing.T) {
	assert := assert.New(t)

	id := model.TemplateID("t1")
	resolver := NewResolver(templateMap{id: "Hey {{username}}, code {{code}}"}, nil, 0)
	rule := &model.Rule{ID: "r1", WorkspaceID: "ws", TemplateID: &id, ReplyText: "fallback"}

	text, err := resolver.Resolve(context.Background(), Request{
		Rule:      rule,
		Comment:   comment,
		Variables: map[string]string{"code": "SAVE10", "username": "ignored"},
	})
	assert.Nil(err)
	assert.Equal("Hey jo, code SAVE10", text)

	t.Run("missing template falls back to reply text", func(t *testing.T) {
		missing := model.TemplateID("gone")
		text, err := resolver.Resolve(context.Background(), Request{Rule: &model.Rule{TemplateID: &missing, ReplyText: "fallback"}, Comment: comment})
		assert.Nil(err)
		assert.Equal("fallback", text)
	})

	t.Run("template of another workspace", func(t *testing.T) {
		text, err := resolver.Resolve(context.Background(), Request{Rule: &model.Rule{WorkspaceID: "other", TemplateID: &id, ReplyText: "fallback"}, Comment: comment})
		assert.Nil(err)
		assert.Equal("fallback", text)
	})

	t.Run("missing template without reply text", func(t *testing.T) {
		missing := model.TemplateID("gone")
		_, err := resolver.Resolve(context.Background(), Request{Rule: &model.Rule{TemplateID: &missing}, Comment: comment})
		assert.ErrorIs(err, model.ErrorNotFound)
	})
}

func TestTruncationHappensAfterSubstitution(t *testing.T) {
	assert := assert.New(t)

	resolver := NewResolver(templateMap{}, nil, 20)
	rule := &model.Rule{ReplyText: "{{comment}}"}
	long := model.CommentEvent{Text: strings.Repeat("x", 40), AuthorUsername: "jo"}

	text, err := resolver.Resolve(context.Background(), Request{Rule: rule, Comment: long})
	assert.Nil(err)
	assert.Equal(strings.Repeat("x", 17)+Ellipsis, text)
}

func TestResolveAI(t *testing.T) {
	assert := assert.New(t)

	generator := &fakeGenerator{reply: "  Glad you liked it!  "}
	resolver := NewResolver(nil, generator, 0)

	text, err := resolver.Resolve(context.Background(), Request{
		AI: &AIRequest{
			Tone:      ToneProfessional,
			Prompt:    "{comment_author} wrote {comment_content} about {product}",
			MaxLength: 100,
			Variables: map[string]string{"product": "boots"},
		},
		Comment: comment,
	})
	assert.Nil(err)
	assert.Equal("Glad you liked it!", text)
	assert.Equal("jo wrote is there a discount? about boots", generator.prompt)
	assert.Equal(SystemInstruction(ToneProfessional, 100), generator.system)

	t.Run("long output is truncated", func(t *testing.T) {
		generator := &fakeGenerator{reply: strings.Repeat("y", 200)}
		resolver := NewResolver(nil, generator, 0)
		text, err := resolver.Resolve(context.Background(), Request{AI: &AIRequest{MaxLength: 50}, Comment: comment})
		assert.Nil(err)
		assert.Equal(50, utf8.RuneCountInString(text))
		assert.True(strings.HasSuffix(text, Ellipsis))
	})

	t.Run("generator failure", func(t *testing.T) {
		generator := &fakeGenerator{err: errors.New("quota exhausted")}
		resolver := NewResolver(nil, generator, 0)
		_, err := resolver.Resolve(context.Background(), Request{AI: &AIRequest{}, Comment: comment})
		assert.NotNil(err)
	})

	t.Run("empty generation", func(t *testing.T) {
		resolver := NewResolver(nil, &fakeGenerator{reply: "  "}, 0)
		_, err := resolver.Resolve(context.Background(), Request{AI: &AIRequest{}, Comment: comment})
		assert.ErrorIs(err, model.ErrorUpstream)
	})
}

func TestNothingToResolve(t *testing.T) {
	resolver := NewResolver(nil, nil, 0)
	_, err := resolver.Resolve(context.Background(), Request{AI: &AIRequest{}, Comment: comment})
	assert.ErrorIs(t, err, ErrorNothingToResolve)
}

func TestDiscountScenario(t *testing.T) {
	assert := assert.New(t)

	discount := model.Rule{
		ID:        "discount",
		Active:    true,
		MatchMode: model.MatchModeAny,
		Keywords:  model.StringList{"discount"},
		ReplyText: "Thanks for asking about our discount!",
	}
	generator := &fakeGenerator{reply: "Thank you!"}
	resolver := NewResolver(nil, generator, 0)
	fallback := &AIRequest{Tone: ToneFriendly}

	resolve := func(text string) string {
		event := model.CommentEvent{Text: text, AuthorUsername: "jo"}
		matched, _ := rules.Match(text, rules.Order([]model.Rule{discount}))
		reply, err := resolver.Resolve(context.Background(), Request{Rule: matched, AI: fallback, Comment: event})
		assert.Nil(err)
		return reply
	}

	assert.Equal("Thanks for asking about our discount!", resolve("is there a discount?"))
	assert.Equal(0, generator.calls)

	assert.Equal("Thank you!", resolve("nice post"))
	assert.Equal(1, generator.calls)
}

func TestSystemInstructionGolden(t *testing.T) {
	g := goldie.New(t)
	for _, tone := range []Tone{ToneFriendly, ToneProfessional, ToneCasual, ToneFormal} {
		g.Assert(t, "system_"+string(tone), []byte(SystemInstruction(tone, 280)))
	}
	g.Assert(t, "system_unknown", []byte(SystemInstruction(Tone("sarcastic"), 280)))
}
