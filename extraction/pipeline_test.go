package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AnTengye/keydates/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockModelClient struct {
	mock.Mock
}

func (m *MockModelClient) Complete(ctx context.Context, messages []model.ChatMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

// isRepair matches the repair prompt by its system message.
func isRepair(messages []model.ChatMessage) bool {
	return len(messages) > 0 && messages[0].Content == repairSystemPrompt
}

func isExtraction(messages []model.ChatMessage) bool {
	return len(messages) > 0 && messages[0].Content == extractionSystemPrompt
}

var testDoc = model.Document{
	SourceFile: "lease.pdf",
	Format:     model.FormatPDF,
	Text:       "The lease starts on 1 February 2024 and rent is due on the 5th.",
	Pages:      []string{"The lease starts on 1 February 2024", "rent is due on the 5th"},
}

func TestPipelineFirstAttemptSuccess(t *testing.T) {
	client := new(MockModelClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(isExtraction)).
		Return(`{"items":[{"date_text":"1 February 2024","date_iso":"2024-02-01","type":"start","summary":"Lease start"}]}`, nil).Once()

	out, err := New(client, Config{}).Run(context.Background(), testDoc)
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.Final)
	assert.False(t, out.Repaired)
	assert.Equal(t, 1, out.Calls)
	require.Len(t, out.Items, 1)
	assert.Equal(t, model.EventStart, out.Items[0].Type)
	assert.Equal(t, "lease.pdf", out.Items[0].SourceFile)

	client.AssertExpectations(t)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.MatchedBy(isRepair))
}

func TestPipelineFencedEmptyArraySkipsRepair(t *testing.T) {
	client := new(MockModelClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(isExtraction)).Return("```json\n[]\n```", nil).Once()

	out, err := New(client, Config{}).Run(context.Background(), testDoc)
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.Final)
	assert.NotNil(t, out.Items)
	assert.Empty(t, out.Items)
	client.AssertNumberOfCalls(t, "Complete", 1)
}

func TestPipelineRepairSuccess(t *testing.T) {
	bad := `{"foo":"bar","items":"not-array"}`

	client := new(MockModelClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(isExtraction)).Return(bad, nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(isRepair)).
		Return(`{"items":[{"date_text":"the 5th","type":"payment"}]}`, nil).Once()

	out, err := New(client, Config{}).Run(context.Background(), testDoc)
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.Final)
	assert.True(t, out.Repaired)
	assert.Equal(t, 2, out.Calls)
	require.Len(t, out.Items, 1)
	assert.Equal(t, model.EventPayment, out.Items[0].Type)
	client.AssertExpectations(t)
}

func TestPipelineRepairPromptCarriesOnlyPriorOutput(t *testing.T) {
	bad := "Here you go: {items: [oops"

	var repairMessages []model.ChatMessage
	client := new(MockModelClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(isExtraction)).Return(bad, nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(isRepair)).
		Run(func(args mock.Arguments) {
			repairMessages = args.Get(1).([]model.ChatMessage)
		}).
		Return(`[]`, nil).Once()

	_, err := New(client, Config{}).Run(context.Background(), testDoc)
	require.NoError(t, err)

	require.Len(t, repairMessages, 2)
	user := repairMessages[1].Content
	assert.Contains(t, user, `"Here you go: {items: [oops"`)
	assert.Contains(t, user, SchemaDescription)
	assert.NotContains(t, user, testDoc.Text)
	assert.NotContains(t, user, testDoc.SourceFile)
}

func TestPipelineDoubleFailureYieldsEmpty(t *testing.T) {
	client := new(MockModelClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(isExtraction)).Return("not json", nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(isRepair)).Return("still not json", nil).Once()

	out, err := New(client, Config{}).Run(context.Background(), testDoc)
	require.NoError(t, err)

	assert.Equal(t, StateEmpty, out.Final)
	assert.True(t, out.Repaired)
	assert.NotNil(t, out.Items)
	assert.Empty(t, out.Items)
	client.AssertExpectations(t)
}

func TestPipelineRepairTransportErrorIsSwallowed(t *testing.T) {
	client := new(MockModelClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(isExtraction)).Return(`{"items":{}}`, nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(isRepair)).Return("", errors.New("connection reset")).Once()

	out, err := New(client, Config{}).Run(context.Background(), testDoc)
	require.NoError(t, err)

	assert.Equal(t, StateEmpty, out.Final)
	assert.Empty(t, out.Items)
	assert.NotNil(t, out.Items)
}

func TestPipelineFirstAttemptErrorPropagates(t *testing.T) {
	upstream := errors.New("upstream 502")

	client := new(MockModelClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(isExtraction)).Return("", upstream).Once()

	out, err := New(client, Config{}).Run(context.Background(), testDoc)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, upstream)
	client.AssertNumberOfCalls(t, "Complete", 1)
}

func TestPipelineCallsSurviveCancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := new(MockModelClient)
	client.On("Complete", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).
		Return(`[]`, nil).Once()

	out, err := New(client, Config{}).Run(ctx, testDoc)
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.Final)
	client.AssertExpectations(t)
}

func TestPipelineDriftDoesNotChangeResult(t *testing.T) {
	raw := `[{"date_text":"1 May","type":"renewal","page":"2","extra":true}]`

	client := new(MockModelClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(raw, nil).Once()

	out, err := New(client, Config{}).Run(context.Background(), testDoc)
	require.NoError(t, err)

	candidates, _ := Normalize(raw)
	assert.Equal(t, Sanitize(candidates, testDoc.SourceFile), out.Items)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "first_attempt", StateFirstAttempt.String())
	assert.Equal(t, "repairing", StateRepairing.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "empty", StateEmpty.String())
	assert.True(t, strings.HasPrefix(State(42).String(), "unknown"))
}
