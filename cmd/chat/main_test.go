package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"academy-assistant/internal/chat"
	"academy-assistant/internal/domain"
	"academy-assistant/internal/fallback"
)

type echoLLM struct {
	err error
}

func (e echoLLM) Chat(_ context.Context, msgs []domain.ChatMessage) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return "echo: " + msgs[len(msgs)-1].Content, nil
}

func TestRun_Commands(t *testing.T) {
	session, err := chat.NewSession(echoLLM{})
	require.NoError(t, err)

	var out strings.Builder
	in := strings.NewReader("what courses?\n/history\n/clear\n/history\n/quit\nignored\n")
	require.NoError(t, run(context.Background(), session, in, &out))

	text := out.String()
	require.Contains(t, text, "echo: what courses?")
	require.Contains(t, text, "[user] what courses?")
	require.Contains(t, text, "[assistant] echo: what courses?")
	require.Contains(t, text, "(conversation cleared)")
	require.NotContains(t, text, "ignored")
	require.Len(t, session.History(), 1)
}

func TestRun_FallbackOnUpstreamError(t *testing.T) {
	session, err := chat.NewSession(echoLLM{err: errors.New("down")})
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, run(context.Background(), session, strings.NewReader("Hi!\n"), &out))
	require.Contains(t, out.String(), fallback.GreetingResponse)
}
