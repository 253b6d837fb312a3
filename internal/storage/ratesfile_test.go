package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestReadObservationsCSV(t *testing.T) {
	input := "\ufeffrate_date,currency_symbol,exchange_rate,source\n" +
		"2024-01-01,EUR,1.0945,ecb\n" +
		"2024-01-02, GBP ,1.27,ecb\n"

	obs, err := ReadObservationsCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if obs[0].Instrument != "EUR" || obs[0].Rate.String() != "1.0945" || !obs[0].Date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first observation %+v", obs[0])
	}
	if obs[1].Instrument != "GBP" {
		t.Fatalf("symbol should be trimmed, got %q", obs[1].Instrument)
	}
}

func TestReadObservationsCSVRejects(t *testing.T) {
	cases := map[string]string{
		"missing column": "currency_symbol,rate_date\nEUR,2024-01-01\n",
		"bad date":       "currency_symbol,rate_date,exchange_rate\nEUR,01/02/2024,1.1\n",
		"bad rate":       "currency_symbol,rate_date,exchange_rate\nEUR,2024-01-01,abc\n",
		"zero rate":      "currency_symbol,rate_date,exchange_rate\nEUR,2024-01-01,0\n",
		"empty symbol":   "currency_symbol,rate_date,exchange_rate\n,2024-01-01,1.1\n",
		"empty file":     "",
	}
	for name, input := range cases {
		if _, err := ReadObservationsCSV(strings.NewReader(input)); !errors.Is(err, ErrInvalidRates) {
			t.Fatalf("%s: expected ErrInvalidRates, got %v", name, err)
		}
	}
}
