package model

import (
	"strings"

	"github.com/google/uuid"
	"github.com/yadunandan004/dblogger/logerr"
)

// SourceInfo identifies the producer a logger writes on behalf of.
type SourceInfo struct {
	ID   int64  `json:"id" yaml:"id"`
	UUID string `json:"uuid" yaml:"uuid"`
	Name string `json:"name" yaml:"name"`
}

func NewSourceInfo(name string) SourceInfo {
	return SourceInfo{UUID: uuid.NewString(), Name: name}
}

// Validate requires the canonical 36-character lowercase UUID form.
func (s SourceInfo) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return logerr.Errorf(logerr.KindInvalidArgument, "source_info", "source name is empty")
	}
	parsed, err := uuid.Parse(s.UUID)
	if err != nil {
		return logerr.Errorf(logerr.KindInvalidArgument, "source_info", "invalid source uuid %q: %v", s.UUID, err)
	}
	if parsed.String() != s.UUID {
		return logerr.Errorf(logerr.KindInvalidArgument, "source_info", "source uuid %q is not in canonical form", s.UUID)
	}
	return nil
}
