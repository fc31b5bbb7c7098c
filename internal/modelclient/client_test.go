package modelclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
)

type roundTrip func(*http.Request) *http.Response

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req), nil
}

func respond(status int, body string) *http.Client {
	return &http.Client{
		Transport: roundTrip(func(req *http.Request) *http.Response {
			return &http.Response{
				StatusCode: status,
				Body:       io.NopCloser(strings.NewReader(body)),
				Header:     make(http.Header),
			}
		}),
	}
}

func TestClassifySuccess(t *testing.T) {
	client := &Client{
		BaseURL: "https://model.test/classify",
		HTTPClient: &http.Client{
			Transport: roundTrip(func(req *http.Request) *http.Response {
				body, _ := io.ReadAll(req.Body)
				if !strings.Contains(string(body), `"inputs":"comp sci"`) {
					t.Fatalf("unexpected payload %s", body)
				}
				return &http.Response{
					StatusCode: 200,
					Body: io.NopCloser(strings.NewReader(`[[
						{"label":"Software Engineering","score":0.2},
						{"label":"Computer Science","score":0.75}
					]]`)),
					Header: make(http.Header),
				}
			}),
		},
	}

	label, conf, err := client.Classify(context.Background(), "comp sci")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if label != "computer science" || conf != 75 {
		t.Fatalf("got %q %v", label, conf)
	}
}

func TestClassifyFlatResponse(t *testing.T) {
	client := &Client{BaseURL: "https://model.test", HTTPClient: respond(200, `[{"label":"nursing","score":0.5}]`)}
	label, conf, err := client.Classify(context.Background(), "nursing")
	if err != nil || label != "nursing" || conf != 50 {
		t.Fatalf("got %q %v %v", label, conf, err)
	}
}

func TestClassifyUnavailable(t *testing.T) {
	cases := map[string]*Client{
		"no url":       {},
		"http error":   {BaseURL: "https://model.test", HTTPClient: respond(503, `{"error":"loading"}`)},
		"bad json":     {BaseURL: "https://model.test", HTTPClient: respond(200, `{`)},
		"empty":        {BaseURL: "https://model.test", HTTPClient: respond(200, `[]`)},
		"bad score":    {BaseURL: "https://model.test", HTTPClient: respond(200, `[{"label":"x","score":7}]`)},
		"wrong schema": {BaseURL: "https://model.test", HTTPClient: respond(200, `{"label":"x"}`)},
	}
	for name, client := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := client.Classify(context.Background(), "anything")
			if !errors.Is(err, internalerr.ErrClassificationUnavailable) {
				t.Fatalf("expected ErrClassificationUnavailable, got %v", err)
			}
		})
	}
}

type blockingTransport struct{}

func (blockingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, req.Context().Err()
}

func TestClassifyHonoursCancellation(t *testing.T) {
	client := &Client{BaseURL: "https://model.test", HTTPClient: &http.Client{Transport: blockingTransport{}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		_, _, err := client.Classify(ctx, "comp sci")
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, internalerr.ErrClassificationUnavailable) || !errors.Is(err, context.Canceled) {
			t.Fatalf("expected unavailable + canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Classify ignored the cancelled context")
	}
}

func TestLabelsCopy(t *testing.T) {
	c := &Client{Known: []string{"a", "b"}}
	got := c.Labels()
	got[0] = "z"
	if c.Known[0] != "a" {
		t.Error("Labels should return a copy")
	}
}
