package client

import (
	"context"
	"net/http"

	"github.com/kazz187/timeguild/internal/assistant"
	"github.com/kazz187/timeguild/internal/tracker"
	"github.com/kazz187/timeguild/internal/verification"
)

func (c *Client) Verify(ctx context.Context, photoDataURI string, previousTasks []string) (*verification.Result, error) {
	if previousTasks == nil {
		previousTasks = []string{}
	}
	var res verification.Result
	err := c.do(ctx, http.MethodPost, "/api/assistant/verify", &assistant.VerifyInput{
		PhotoDataURI:  photoDataURI,
		PreviousTasks: previousTasks,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Suggest(ctx context.Context, description string, known []tracker.KnownProject) (*tracker.Suggestion, error) {
	recent := make([]assistant.RecentProject, len(known))
	for i, k := range known {
		recent[i] = assistant.RecentProject{Name: k.Name, Client: k.Client, Date: k.Date}
	}
	var sug assistant.Suggestion
	err := c.do(ctx, http.MethodPost, "/api/assistant/suggest", &assistant.SuggestInput{
		TaskDescription: description,
		RecentProjects:  recent,
	}, &sug)
	if err != nil {
		return nil, err
	}
	return &tracker.Suggestion{ProjectName: sug.SuggestedProjectName, Reason: sug.Reason}, nil
}
