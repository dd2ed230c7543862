package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/matchpay/internal/app/api/server"
	"github.com/fatflowers/matchpay/internal/app/repository"
	"github.com/fatflowers/matchpay/internal/app/service/payment"
	"github.com/fatflowers/matchpay/internal/app/service/statistics"
	"github.com/fatflowers/matchpay/internal/app/service/webhook"
	webhooklog "github.com/fatflowers/matchpay/internal/app/service/webhook_log"
	"github.com/fatflowers/matchpay/internal/platform/db"
	"github.com/fatflowers/matchpay/internal/platform/redis/inflight"
	"github.com/fatflowers/matchpay/internal/platform/stripe/stripe_client"
	"github.com/fatflowers/matchpay/pkg/config"
	"github.com/fatflowers/matchpay/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	repository.Module,
	stripe_client.Module,
	inflight.Module,
	server.Module,
	payment.Module,
	webhook.Module,
	webhooklog.Module,
	statistics.Module,
)
