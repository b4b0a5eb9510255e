/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Seednode/duet/internal/duet"
	"github.com/rs/zerolog/log"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Info().Msgf(format, args...)
}

func logErrors(errs <-chan error) {
	for err := range errs {
		log.Error().Err(err).Msg("SERVE: write failed")
	}
}

// statusFor maps an action error onto an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, duet.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, duet.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, duet.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, duet.ErrConflict):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "An error has occurred. Please try again."
	}
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
