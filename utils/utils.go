package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var level = zerolog.InfoLevel

// SetLevel applies to every logger created afterwards.
func SetLevel(name string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	level = lvl
}

func NewLog(dir, name string) zerolog.Logger {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		panic(err)
	}
	fileName := fmt.Sprintf("%s%s.log", dir, name)
	file, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		panic(err)
	}
	return zerolog.New(file).With().Timestamp().Str("component", name).Logger().Level(level)
}
