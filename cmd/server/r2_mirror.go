package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"futdrill.ai/internal/persistence/r2s3"
)

// buildR2Mirror returns nil unless FD_R2_MIRROR is true.
func buildR2Mirror(archRoot string, logger *log.Logger) (*r2s3.RunMirror, error) {
	if !envBool("FD_R2_MIRROR", false) {
		return nil, nil
	}
	cfg := r2s3.Config{
		Endpoint:        os.Getenv("FD_R2_ENDPOINT"),
		Bucket:          os.Getenv("FD_R2_BUCKET"),
		Region:          strings.TrimSpace(os.Getenv("FD_R2_REGION")),
		AccessKeyID:     os.Getenv("FD_R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("FD_R2_SECRET_ACCESS_KEY"),
	}
	client, err := r2s3.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("FD_R2_MIRROR=true: %w", err)
	}
	return r2s3.NewRunMirror(client, archRoot, r2s3.MirrorOptions{
		Prefix:  os.Getenv("FD_R2_PREFIX"),
		Workers: envInt("FD_R2_UPLOAD_WORKERS", 1),
		Logger:  logger,
	}), nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
