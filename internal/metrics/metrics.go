// Package metrics exposes Prometheus instrumentation for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Downloads counts completed media downloads by kind.
	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "downloads_total",
		Help:      "Completed media downloads by kind.",
	}, []string{"kind"})

	// DownloadFailures counts download attempts that errored.
	DownloadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "download_failures_total",
		Help:      "Failed media downloads by reason.",
	}, []string{"reason"})

	// BroadcastMessages counts per-recipient broadcast outcomes.
	BroadcastMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "broadcast_messages_total",
		Help:      "Broadcast delivery outcomes.",
	}, []string{"outcome"})

	// GatedRejections counts interactions blocked by channel gating.
	GatedRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "gated_rejections_total",
		Help:      "Interactions blocked pending forced channel membership.",
	})

	// LyricsLookups counts lyrics lookups by outcome.
	LyricsLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "musicbot",
		Name:      "lyrics_lookups_total",
		Help:      "Lyrics lookups by outcome.",
	}, []string{"outcome"})
)
