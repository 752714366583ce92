package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/run"
	"github.com/relex/gotils/logger"
)

type configureCommandState struct {
	Agent        string `help:"Control address of the agent"`
	Source       string `help:"Stream address, e.g. rtsp://camera/stream or synthetic://640x360?paced=true"`
	StreamID     string `name:"streamid" help:"Stream ID used in result topics"`
	SessionID    string `name:"sessionid" help:"Session ID, random if empty"`
	Analytic     string `help:"Analytic name reported in results"`
	AnalyticAddr string `name:"analyticaddr" help:"Analytic address reported in results"`
	Messenger    string `help:"Messenger (NATS) URL"`
	Database     string `help:"Database address or DSN"`
	Tags         string `help:"System tags: k1=v1,k2=v2"`
	ReturnFrame  bool   `name:"returnframe" help:"Attach annotated frames to results"`
	Width        int    `help:"Capture frame width, 0 for source default"`
	Height       int    `help:"Capture frame height, 0 for source default"`
}

type controlCommandState struct {
	Agent string `help:"Control address of the agent"`
}

var configureCmd = configureCommandState{
	Agent: "localhost:3000",
}

var terminateCmd = controlCommandState{
	Agent: "localhost:3000",
}

var statusCmd = controlCommandState{
	Agent: "localhost:3000",
}

func (cmd *configureCommandState) run(_ []string) {
	req, err := cmd.request()
	if err != nil {
		logger.Fatal(err)
	}
	if err := req.Validate(); err != nil {
		logger.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), defs.PipelineStopTimeout+defs.ControlShutdownTimeout)
	defer cancel()
	if err := run.NewClient(cmd.Agent).Configure(ctx, req); err != nil {
		logger.Fatal(err)
	}
	logger.Infof("configured %s: source=%s", cmd.Agent, req.SourceAddress)
}

func (cmd *configureCommandState) request() (run.ConfigureRequest, error) {
	tags, err := parseTags(cmd.Tags)
	if err != nil {
		return run.ConfigureRequest{}, err
	}
	return run.ConfigureRequest{
		SourceAddress: cmd.Source,
		Analytic: run.AnalyticRequest{
			Name:    cmd.Analytic,
			Address: cmd.AnalyticAddr,
		},
		MessengerAddress: cmd.Messenger,
		DatabaseAddress:  cmd.Database,
		StreamID:         cmd.StreamID,
		SessionID:        cmd.SessionID,
		Tags:             tags,
		ReturnFrame:      cmd.ReturnFrame,
		FrameWidth:       cmd.Width,
		FrameHeight:      cmd.Height,
	}, nil
}

func (cmd *controlCommandState) runTerminate(_ []string) {
	ctx, cancel := context.WithTimeout(context.Background(), defs.PipelineStopTimeout+defs.ControlShutdownTimeout)
	defer cancel()
	if err := run.NewClient(cmd.Agent).Terminate(ctx); err != nil {
		logger.Fatal(err)
	}
	logger.Infof("terminated pipeline on %s", cmd.Agent)
}

func (cmd *controlCommandState) runStatus(_ []string) {
	ctx, cancel := context.WithTimeout(context.Background(), defs.ControlShutdownTimeout)
	defer cancel()
	status, err := run.NewClient(cmd.Agent).Status(ctx)
	if err != nil {
		logger.Fatal(err)
	}
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		logger.Fatal(err)
	}
	fmt.Println(string(out))
}

// parseTags parses "k1=v1,k2=v2" into a map; empty input gives nil
func parseTags(text string) (map[string]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	tags := make(map[string]string)
	for _, pair := range strings.Split(text, ",") {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid tag %q, expect key=value", pair)
		}
		tags[key] = strings.TrimSpace(value)
	}
	return tags, nil
}
