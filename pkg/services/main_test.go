package services

import (
	"os"
	"testing"

	"github.com/autoclaw/autoclaw-backend/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}
