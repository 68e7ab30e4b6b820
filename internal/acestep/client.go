package acestep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/arlomorin/loopjam/internal/audio"
	"github.com/arlomorin/loopjam/internal/jam"
)

// Options are the generation quality knobs sent with every task.
type Options struct {
	InferenceSteps int     // diffusion steps (base: 50+, turbo: 8)
	GuidanceScale  float64 // CFG strength
	Shift          float64 // timestep shift
	AudioFormat    string  // flac, mp3, wav
	RefStrength    float64 // style-transfer blend, 0..1
	PollInterval   time.Duration
}

// Client communicates with the ACE-Step v1.5 REST API and implements
// jam.Generator. One Generate call covers the whole task: submit, poll,
// fetch audio, decode to engine PCM, trim to the requested bar-exact length.
type Client struct {
	apiURL    string
	apiKey    string
	outputDir string // shared volume mount point
	opts      Options
	http      *http.Client
}

// NewClient creates an ACE-Step API client.
func NewClient(apiURL, apiKey, outputDir string, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Client{
		apiURL:    apiURL,
		apiKey:    apiKey,
		outputDir: outputDir,
		opts:      opts,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// taskPayload is the /release_task request body.
type taskPayload struct {
	Caption        string  `json:"caption"`
	Lyrics         string  `json:"lyrics"`
	Duration       float64 `json:"audio_duration"`
	InferenceSteps int     `json:"inference_steps"`
	GuidanceScale  float64 `json:"guidance_scale"`
	Shift          float64 `json:"shift"`
	Seed           int     `json:"seed"`
	UseRandomSeed  bool    `json:"use_random_seed"`
	BatchSize      int     `json:"batch_size"`
	AudioFormat    string  `json:"audio_format"`
	Audio2Audio    bool    `json:"audio2audio_enable,omitempty"`
	RefAudioPath   string  `json:"ref_audio_input,omitempty"`
	RefStrength    float64 `json:"ref_audio_strength,omitempty"`
}

type releaseResp struct {
	Data struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
	Code  int    `json:"code"`
	Error string `json:"error"`
}

type queryResp struct {
	Data []taskResult `json:"data"`
	Code int          `json:"code"`
}

type taskResult struct {
	TaskID string `json:"task_id"`
	Status int    `json:"status"` // 0=running, 1=success, 2=failed
	Result string `json:"result"` // JSON string with file info
}

type resultItem struct {
	File   string `json:"file"`
	Status int    `json:"status"`
}

// WaitForHealthy blocks until the ACE-Step API responds to health checks.
func (c *Client) WaitForHealthy(ctx context.Context) error {
	log.Println("Waiting for ACE-Step API to be ready...")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp, err := c.http.Get(c.apiURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			log.Println("ACE-Step API is healthy")
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}

		log.Println("ACE-Step not ready, retrying in 5s...")
		time.Sleep(5 * time.Second)
	}
}

// Generate renders one loop. The request's TargetSamples is authoritative:
// the decoded audio is trimmed to exactly that length so the bar-multiple
// invariant holds regardless of codec padding. A render shorter than
// requested is a failure.
func (c *Client) Generate(ctx context.Context, req jam.Request) (*audio.LoopBuffer, error) {
	taskID, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}

	path, err := c.pollUntilDone(ctx, taskID)
	if err != nil {
		return nil, err
	}

	samples, err := audio.DecodeFile(path)
	if err != nil {
		return nil, err
	}

	want := req.TargetSamples * audio.Channels
	if len(samples) < want {
		return nil, fmt.Errorf("task %s rendered %d samples, want %d", taskID, len(samples)/audio.Channels, req.TargetSamples)
	}
	samples = samples[:want]

	return &audio.LoopBuffer{
		ID:         uuid.NewString(),
		Path:       path,
		Samples:    samples,
		SampleRate: audio.SampleRate,
		Tempo:      req.Tempo,
		Bars:       req.Params.Bars,
		Params:     req.Params,
		Created:    time.Now(),
	}, nil
}

// submit posts the generation task and returns its task ID.
func (c *Client) submit(ctx context.Context, req jam.Request) (string, error) {
	payload := taskPayload{
		Caption:        req.Params.Prompt,
		Lyrics:         "[Instrumental]",
		Duration:       float64(req.TargetSamples) / audio.SampleRate,
		InferenceSteps: c.opts.InferenceSteps,
		GuidanceScale:  c.opts.GuidanceScale,
		Shift:          c.opts.Shift,
		Seed:           -1,
		UseRandomSeed:  true,
		BatchSize:      1,
		AudioFormat:    c.opts.AudioFormat,
	}
	if req.RefPath != "" {
		payload.Audio2Audio = true
		payload.RefAudioPath = req.RefPath
		payload.RefStrength = c.opts.RefStrength
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL+"/release_task", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	defer resp.Body.Close()

	var result releaseResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Code != 200 {
		return "", fmt.Errorf("API error (code %d): %s", result.Code, result.Error)
	}

	return result.Data.TaskID, nil
}

// pollUntilDone polls for task completion, returning the audio file path.
func (c *Client) pollUntilDone(ctx context.Context, taskID string) (string, error) {
	reqBody, _ := json.Marshal(map[string][]string{
		"task_id_list": {taskID},
	})

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL+"/query_result", bytes.NewReader(reqBody))
		if err != nil {
			return "", fmt.Errorf("create poll request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Printf("Poll error: %v, retrying...", err)
			c.sleep(ctx)
			continue
		}

		var result queryResp
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			resp.Body.Close()
			log.Printf("Decode error: %v, retrying...", err)
			c.sleep(ctx)
			continue
		}
		resp.Body.Close()

		if len(result.Data) == 0 {
			c.sleep(ctx)
			continue
		}

		task := result.Data[0]
		switch task.Status {
		case 1: // success
			return c.extractAudioPath(task.Result)
		case 2: // failed
			return "", fmt.Errorf("generation failed for task %s", taskID)
		default: // still running
			c.sleep(ctx)
		}
	}
}

func (c *Client) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.opts.PollInterval):
	}
}

// extractAudioPath parses the result JSON and returns the local file path.
func (c *Client) extractAudioPath(resultJSON string) (string, error) {
	var items []resultItem
	if err := json.Unmarshal([]byte(resultJSON), &items); err != nil {
		return "", fmt.Errorf("parse result items: %w", err)
	}
	if len(items) == 0 || items[0].File == "" {
		return "", fmt.Errorf("no audio file in result")
	}

	fileRef := items[0].File

	// Shared volume first: ACE-Step returns URL-style references like
	// "/v1/audio?path=outputs/task_xxx/0.flac"
	if u, err := url.Parse(fileRef); err == nil {
		if relPath := u.Query().Get("path"); relPath != "" {
			localPath := filepath.Join(c.outputDir, relPath)
			if _, err := os.Stat(localPath); err == nil {
				return localPath, nil
			}
		}
	}

	// Fallback: download via HTTP
	return c.downloadAudio(fileRef)
}

// downloadAudio fetches the audio file from the API and saves it locally.
func (c *Client) downloadAudio(fileRef string) (string, error) {
	resp, err := c.http.Get(c.apiURL + fileRef)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp("", "loopjam-*.audio")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("write audio: %w", err)
	}

	tmpFile.Close()
	return tmpFile.Name(), nil
}
