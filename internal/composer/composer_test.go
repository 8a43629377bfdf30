package composer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeGen captures the request and returns a canned answer.
type fakeGen struct {
	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
	answer      string
	err         error
}

func (f *fakeGen) generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotContents = contents
	f.gotConfig = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(f.answer, genai.RoleModel)},
		},
	}, nil
}

func newTestComposer(f *fakeGen) *Composer {
	return &Composer{model: GenerationModel, generate: f.generate}
}

func contentText(c *genai.Content) string {
	var sb strings.Builder
	for _, part := range c.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

func TestCompose_DropsLeadingModelTurn(t *testing.T) {
	gen := &fakeGen{answer: "Pendaftaran dibuka bulan Juni."}
	c := newTestComposer(gen)

	history := []Turn{
		{Role: "model", Text: "Halo! Ada yang bisa saya bantu?"},
		{Role: "user", Text: "Apa itu jalur mandiri?"},
		{Role: "model", Text: "Jalur mandiri adalah seleksi non-SNBT."},
	}

	_, err := c.Compose(context.Background(), "Kapan dibuka?", history, "konteks")
	require.NoError(t, err)

	// greeting dropped, two history turns + the final prompt turn remain
	require.Len(t, gen.gotContents, 3)
	assert.Equal(t, genai.RoleUser, gen.gotContents[0].Role, "effective sequence must start with a user turn")
	assert.Equal(t, "Apa itu jalur mandiri?", contentText(gen.gotContents[0]))
	assert.Equal(t, genai.RoleModel, gen.gotContents[1].Role)
}

func TestCompose_MapsAssistantRole(t *testing.T) {
	gen := &fakeGen{answer: "ok"}
	c := newTestComposer(gen)

	history := []Turn{
		{Role: "user", Text: "halo"},
		{Role: "assistant", Text: "halo juga"},
	}

	_, err := c.Compose(context.Background(), "pertanyaan", history, "")
	require.NoError(t, err)

	require.Len(t, gen.gotContents, 3)
	assert.Equal(t, genai.RoleModel, gen.gotContents[1].Role, "assistant label must map to the model role")
}

func TestCompose_DropsLeadingAssistantTurn(t *testing.T) {
	gen := &fakeGen{answer: "ok"}
	c := newTestComposer(gen)

	history := []Turn{{Role: "assistant", Text: "Selamat datang!"}}

	_, err := c.Compose(context.Background(), "pertanyaan", history, "")
	require.NoError(t, err)

	require.Len(t, gen.gotContents, 1, "only the prompt turn should remain")
	assert.Equal(t, genai.RoleUser, gen.gotContents[0].Role)
}

func TestCompose_PromptContainsContextAndQuestion(t *testing.T) {
	gen := &fakeGen{answer: "ok"}
	c := newTestComposer(gen)

	_, err := c.Compose(context.Background(), "Berapa biaya UKT?", nil,
		"[panduan.pdf]\nUKT mengikuti kelompok penghasilan.")
	require.NoError(t, err)

	require.Len(t, gen.gotContents, 1)
	prompt := contentText(gen.gotContents[0])
	assert.Contains(t, prompt, "[CONTEXT DOKUMEN PENS]")
	assert.Contains(t, prompt, "UKT mengikuti kelompok penghasilan.")
	assert.Contains(t, prompt, "[PERTANYAAN USER]")
	assert.Contains(t, prompt, "Berapa biaya UKT?")
}

func TestCompose_GenerationConfig(t *testing.T) {
	gen := &fakeGen{answer: "ok"}
	c := newTestComposer(gen)

	_, err := c.Compose(context.Background(), "pertanyaan", nil, "")
	require.NoError(t, err)

	require.NotNil(t, gen.gotConfig)
	require.NotNil(t, gen.gotConfig.Temperature)
	assert.InDelta(t, 0.3, float64(*gen.gotConfig.Temperature), 1e-6)
	assert.EqualValues(t, 1000, gen.gotConfig.MaxOutputTokens)

	require.NotNil(t, gen.gotConfig.SystemInstruction)
	sys := contentText(gen.gotConfig.SystemInstruction)
	assert.Contains(t, sys, FallbackAnswer, "the fallback reply is bound in the system instruction")
	assert.Contains(t, sys, "PENS")
}

func TestCompose_ReturnsAnswerText(t *testing.T) {
	gen := &fakeGen{answer: "Berdasarkan panduan, pendaftaran dibuka bulan Juni."}
	c := newTestComposer(gen)

	got, err := c.Compose(context.Background(), "Kapan pendaftaran?", nil, "ctx")
	require.NoError(t, err)
	assert.Equal(t, gen.answer, got)
}

func TestCompose_WrapsProviderError(t *testing.T) {
	gen := &fakeGen{err: errors.New("429: resource exhausted")}
	c := newTestComposer(gen)

	_, err := c.Compose(context.Background(), "pertanyaan", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.False(t, errors.Is(err, gen.err), "provider error must not survive the wrap")
}

func TestCompose_EmptyResponseIsError(t *testing.T) {
	gen := &fakeGen{answer: ""}
	c := newTestComposer(gen)

	_, err := c.Compose(context.Background(), "pertanyaan", nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
}
