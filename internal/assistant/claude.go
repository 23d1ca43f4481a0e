package assistant

import (
	"context"
	"errors"
	"fmt"

	claudeagent "github.com/kazz187/claude-agent-sdk-go"
)

// ClaudeModel runs each prompt as a short Claude agent query.
type ClaudeModel struct {
	MaxTurns int
}

func NewClaudeModel() *ClaudeModel {
	return &ClaudeModel{MaxTurns: 3}
}

func (m *ClaudeModel) Query(ctx context.Context, systemPrompt, prompt, workDir string, tools []string) (string, error) {
	result, err := claudeagent.RunQuerySync(ctx, prompt, m.options(systemPrompt, workDir, tools))
	if err != nil {
		return "", fmt.Errorf("claude query failed: %w", err)
	}
	if result.Result == nil {
		return "", errors.New("claude query returned no result")
	}
	if result.Result.IsError {
		return "", fmt.Errorf("claude query returned error: %s", result.Result.Result)
	}
	return result.Result.Result, nil
}

// options limits the agent to exactly tools. An empty list leaves it with
// no tools at all, and anything not listed is denied without prompting.
func (m *ClaudeModel) options(systemPrompt, workDir string, tools []string) *claudeagent.ClaudeAgentOptions {
	maxTurns := m.MaxTurns
	allowed := append([]string{}, tools...)
	return &claudeagent.ClaudeAgentOptions{
		SystemPrompt:   systemPrompt,
		Cwd:            workDir,
		Tools:          allowed,
		AllowedTools:   allowed,
		PermissionMode: claudeagent.PermissionModeDontAsk,
		MaxTurns:       &maxTurns,
	}
}
