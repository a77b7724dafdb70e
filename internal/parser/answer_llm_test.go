package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMAnswererReturnsAnswer(t *testing.T) {
	mock := &MockLLMModel{mockResponse: "Go, Python, Kubernetes"}
	answerer := NewLLMAnswerer(mock)

	answer, err := answerer.Answer(context.Background(),
		"Extract all programming languages specifically mentioned.",
		[]string{"Experienced with Go, Python and Kubernetes."})

	require.NoError(t, err)
	assert.Equal(t, "Go, Python, Kubernetes", answer)
	assert.Equal(t, 1, mock.CallCount)
}

// 上下文分块和问题都必须出现在发给模型的用户消息里
func TestLLMAnswererPromptContainsContext(t *testing.T) {
	mock := &MockLLMModel{mockResponse: "ok"}
	answerer := NewLLMAnswerer(mock)

	_, err := answerer.Answer(context.Background(), "What is the education background?",
		[]string{"chunk-one-content", "chunk-two-content"})
	require.NoError(t, err)

	require.Len(t, mock.lastMessages, 2)
	userMsg := mock.lastMessages[1].Content
	assert.Contains(t, userMsg, "chunk-one-content")
	assert.Contains(t, userMsg, "chunk-two-content")
	assert.Contains(t, userMsg, "What is the education background?")
}

func TestLLMAnswererStripsBOMAndWhitespace(t *testing.T) {
	mock := &MockLLMModel{mockResponse: "\uFEFF  answer text \n"}
	answerer := NewLLMAnswerer(mock)

	answer, err := answerer.Answer(context.Background(), "q", []string{"c"})
	require.NoError(t, err)
	assert.Equal(t, "answer text", answer)
}

func TestLLMAnswererPropagatesError(t *testing.T) {
	mock := &MockLLMModel{Err: errors.New("backend down")}
	answerer := NewLLMAnswerer(mock)

	_, err := answerer.Answer(context.Background(), "q", []string{"c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestLLMAnswererEmptyQuestion(t *testing.T) {
	answerer := NewLLMAnswerer(&MockLLMModel{mockResponse: "x"})
	_, err := answerer.Answer(context.Background(), "", []string{"c"})
	assert.Error(t, err)
}
