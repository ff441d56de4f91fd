// Package app assembles the customs services from config. Both binaries share it.
package app

import (
	"time"

	"github.com/BearBump/CustomsBox/config"
	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/integrations/soap"
	"github.com/BearBump/CustomsBox/internal/integrations/soap/fake"
	"github.com/BearBump/CustomsBox/internal/integrations/soap/soaphttp"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/services/customs"
	"github.com/BearBump/CustomsBox/internal/services/tracks"
	"github.com/BearBump/CustomsBox/internal/services/transactions"
)

// Storage is what pgcustoms.Storage provides to the services.
type Storage interface {
	transactions.Repository
	tracks.Repository
	customs.TxManager
}

type Stack struct {
	Transactions *transactions.Service
	Tracks       *tracks.Service
	Orchestrator *customs.Orchestrator
	MicDta       *customs.ArgentinaMicDta
	Registry     *customs.Registry
	Status       *customs.StatusProjector
}

// NewStack builds the services over st. pub may be nil.
func NewStack(cfg *config.Config, st Storage, client soap.Client, pub customs.Publisher) *Stack {
	c := cfg.Customs
	txs := transactions.New(st, transactions.Config{
		Environment:    Environment(cfg),
		MaxRetries:     int32(c.MaxRetries),
		TimeoutSeconds: int32(c.SOAPTimeoutSeconds),
	})
	tr := tracks.New(st, time.Duration(c.TrackFreshnessHours)*time.Hour)

	orch := customs.NewOrchestrator(txs, tr, client, st, pub, customs.Config{
		SubmitterCUIT:           c.AFIPSubmitterCUIT,
		TransactionUpdatedTopic: TransactionUpdatedTopic(cfg),
	})

	return &Stack{
		Transactions: txs,
		Tracks:       tr,
		Orchestrator: orch,
		MicDta:       customs.NewArgentinaMicDta(orch),
		Registry:     customs.NewRegistry(customs.DefaultHandlers(orch)...),
		Status:       customs.NewStatusProjector(txs),
	}
}

// TransactionUpdatedTopic is where the orchestrator publishes status changes.
func TransactionUpdatedTopic(cfg *config.Config) string {
	if t := cfg.Kafka.TransactionUpdatedTopicName; t != "" {
		return t
	}
	return messages.TopicTransactionUpdated
}

// SubmissionRequestedTopic is shared by the API producer and the worker consumer.
func SubmissionRequestedTopic(cfg *config.Config) string {
	if t := cfg.Kafka.SubmissionRequestedTopicName; t != "" {
		return t
	}
	return messages.TopicSubmissionRequested
}

// Environment defaults to testing; only "production" selects the live endpoints.
func Environment(cfg *config.Config) models.Environment {
	if cfg.Customs.Environment == string(models.EnvironmentProduction) {
		return models.EnvironmentProduction
	}
	return models.EnvironmentTesting
}

// NewSOAPClient returns the in-process emulator unless soap_mode is "http".
func NewSOAPClient(cfg *config.Config) soap.Client {
	c := cfg.Customs
	if c.SOAPMode != "http" {
		return fake.New()
	}
	endpoints := map[soaphttp.Endpoint]string{}
	add := func(country models.Country, env models.Environment, url string) {
		if url != "" {
			endpoints[soaphttp.Endpoint{Country: country, Environment: env}] = url
		}
	}
	add(models.CountryArgentina, models.EnvironmentTesting, c.AFIPTestingURL)
	add(models.CountryArgentina, models.EnvironmentProduction, c.AFIPProductionURL)
	add(models.CountryParaguay, models.EnvironmentTesting, c.ParaguayTestingURL)
	add(models.CountryParaguay, models.EnvironmentProduction, c.ParaguayProductionURL)
	return soaphttp.New(endpoints, nil)
}
