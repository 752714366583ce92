package run

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/relex/frame-agent/base"
)

// ConfigureRequest asks to run a pipeline on a stream, replacing the active one if any
type ConfigureRequest struct {
	SourceAddress    string            `json:"streamSource" validate:"required,max=2048"`
	Analytic         AnalyticRequest   `json:"analytic"`
	MessengerAddress string            `json:"messengerAddr" validate:"omitempty,url"`
	DatabaseAddress  string            `json:"dbAddr" validate:"omitempty,max=2048"`
	StreamID         string            `json:"streamId" validate:"omitempty,max=128,excludesall=.*>"`
	SessionID        string            `json:"sessionId" validate:"omitempty,max=128"`
	Tags             map[string]string `json:"systemTags" validate:"omitempty,dive,keys,required,endkeys"`
	ReturnFrame      bool              `json:"returnFrame"`
	FrameWidth       int               `json:"frameWidth" validate:"gte=0,lte=8192,required_with=FrameHeight"`
	FrameHeight      int               `json:"frameHeight" validate:"gte=0,lte=8192,required_with=FrameWidth"`
	Realtime         *bool             `json:"realtime,omitempty"` // frame buffer mode, default from agent config
}

// AnalyticRequest overrides the metadata of the analytic bound to the agent
type AnalyticRequest struct {
	Name             string            `json:"name" validate:"omitempty,max=128"`
	Address          string            `json:"addr" validate:"omitempty,max=256"`
	RequiresGPU      bool              `json:"requiresGpu"`
	Operations       []string          `json:"operations" validate:"omitempty,dive,required"`
	Filters          map[string]string `json:"filters" validate:"omitempty,dive,keys,required,endkeys"`
	ReplicaAddresses []string          `json:"replicaAddrs" validate:"omitempty,dive,required"`
}

var validate = validator.New()

// Validate checks the request and returns an error wrapping base.ErrInvalidRequest
func (req *ConfigureRequest) Validate() error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", base.ErrInvalidRequest, err)
	}
	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			reasons = append(reasons, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			reasons = append(reasons, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", base.ErrInvalidRequest, strings.Join(reasons, "; "))
}
