package bedrock_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/fashnai/fashnai/features/model/bedrock"
	"github.com/fashnai/fashnai/runtime/agent/model"
	"github.com/fashnai/fashnai/runtime/agent/tools"
)

func TestClientComplete(t *testing.T) {
	mock := &mockRuntime{}
	client, err := bedrock.New(bedrock.Options{
		Runtime:      mock,
		DefaultModel: "anthropic.claude-3",
		MaxTokens:    512,
	})
	require.NoError(t, err)

	mock.output = &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role: brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: "hello"},
				&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String("tu-1"),
					Name:      aws.String("web_search"),
					Input:     document.NewLazyDocument(&map[string]any{"query": "boots"}),
				}},
			},
		}},
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(100),
			OutputTokens: aws.Int32(20),
			TotalTokens:  aws.Int32(120),
		},
		StopReason: brtypes.StopReasonToolUse,
	}

	resp, err := client.Complete(context.Background(), model.Request{
		System:   "You are smart.",
		Messages: []*model.Message{model.UserText("hi")},
		Tools: []*model.ToolDefinition{
			{
				Name:        "web_search",
				Description: "search",
				InputSchema: map[string]any{"type": "object"},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Text())
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, tools.Ident("web_search"), resp.ToolCalls[0].Name)
	require.Equal(t, "tu-1", resp.ToolCalls[0].ID)
	require.JSONEq(t, `{"query":"boots"}`, string(resp.ToolCalls[0].Payload))
	require.Equal(t, "tool_use", resp.StopReason)
	require.Equal(t, 120, resp.Usage.TotalTokens)

	input := mock.captured
	require.Equal(t, "anthropic.claude-3", *input.ModelId)
	require.Len(t, input.System, 1)
	require.Len(t, input.Messages, 1)
	require.Equal(t, brtypes.ConversationRoleUser, input.Messages[0].Role)
	require.Equal(t, "hi", input.Messages[0].Content[0].(*brtypes.ContentBlockMemberText).Value)
	require.NotNil(t, input.ToolConfig)
	require.Len(t, input.ToolConfig.Tools, 1)
	require.Equal(t, int32(512), *input.InferenceConfig.MaxTokens)
}

func TestClientKeepsToolConfigWhenToolUseDisabled(t *testing.T) {
	mock := &mockRuntime{output: &bedrockruntime.ConverseOutput{}}
	client, err := bedrock.New(bedrock.Options{Runtime: mock, DefaultModel: "id"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), model.Request{
		Messages: []*model.Message{
			model.UserText("find it"),
			{
				Role:  model.ConversationRoleAssistant,
				Parts: []model.Part{model.ToolUsePart{ID: "c1", Name: "web_search", Input: json.RawMessage(`{"query":"dress"}`)}},
			},
			{
				Role:  model.ConversationRoleUser,
				Parts: []model.Part{model.ToolResultPart{ToolUseID: "c1", Content: "results"}},
			},
		},
		Tools:      []*model.ToolDefinition{{Name: "web_search", Description: "search", InputSchema: map[string]any{"type": "object"}}},
		ToolChoice: &model.ToolChoice{Mode: model.ToolChoiceModeNone},
	})
	require.NoError(t, err)
	require.NotNil(t, mock.captured.ToolConfig)
	require.Len(t, mock.captured.ToolConfig.Tools, 1)
	require.Nil(t, mock.captured.ToolConfig.ToolChoice)
}

func TestClientEncodesImagesAndToolTurns(t *testing.T) {
	mock := &mockRuntime{output: &bedrockruntime.ConverseOutput{}}
	client, err := bedrock.New(bedrock.Options{Runtime: mock, DefaultModel: "id"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), model.Request{
		Messages: []*model.Message{
			{Role: model.ConversationRoleUser, Parts: []model.Part{
				model.TextPart{Text: "look"},
				model.ImagePart{Format: model.ImageFormatWEBP, Bytes: []byte{1}},
			}},
			{Role: model.ConversationRoleAssistant, Parts: []model.Part{
				model.ToolUsePart{ID: "t1", Name: "web_crawl", Input: json.RawMessage(`{"url":"https://x"}`)},
			}},
			{Role: model.ConversationRoleUser, Parts: []model.Part{
				model.ToolResultPart{ToolUseID: "t1", Content: "boom", IsError: true},
			}},
		},
	})
	require.NoError(t, err)

	msgs := mock.captured.Messages
	require.Len(t, msgs, 3)
	img, ok := msgs[0].Content[1].(*brtypes.ContentBlockMemberImage)
	require.True(t, ok)
	require.Equal(t, brtypes.ImageFormatWebp, img.Value.Format)
	use, ok := msgs[1].Content[0].(*brtypes.ContentBlockMemberToolUse)
	require.True(t, ok)
	require.Equal(t, "web_crawl", *use.Value.Name)
	res, ok := msgs[2].Content[0].(*brtypes.ContentBlockMemberToolResult)
	require.True(t, ok)
	require.Equal(t, brtypes.ToolResultStatusError, res.Value.Status)
	require.Nil(t, mock.captured.InferenceConfig)
}

func TestClientRequiresUserMessage(t *testing.T) {
	client, err := bedrock.New(bedrock.Options{Runtime: &mockRuntime{}, DefaultModel: "id"})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), model.Request{})
	require.Error(t, err)
}

func TestClientWrapsThrottling(t *testing.T) {
	mock := &mockRuntime{err: &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}}
	client, err := bedrock.New(bedrock.Options{Runtime: mock, DefaultModel: "id"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), model.Request{Messages: []*model.Message{model.UserText("hi")}})
	require.ErrorIs(t, err, model.ErrRateLimited)
	pe, ok := model.AsProviderError(err)
	require.True(t, ok)
	require.Equal(t, model.ProviderErrorKindRateLimited, pe.Kind())
	require.Equal(t, "slow down", pe.Message())
}

func TestNewValidation(t *testing.T) {
	_, err := bedrock.New(bedrock.Options{DefaultModel: "id"})
	require.Error(t, err)
	_, err = bedrock.New(bedrock.Options{Runtime: &mockRuntime{}})
	require.Error(t, err)
}

type mockRuntime struct {
	captured *bedrockruntime.ConverseInput
	output   *bedrockruntime.ConverseOutput
	err      error
}

func (m *mockRuntime) Converse(_ context.Context, input *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	m.captured = input
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}
