package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/sirupsen/logrus"
)

//go:generate mockery --name=Locator --dir=. --output=./mocks --filename=locator_mock.go --case=underscore --with-expecter
type Locator interface {
	// Country returns the ISO country code for ip, empty when unknown.
	Country(ip string) string
	Close() error
}

type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

type maxmindLocator struct {
	logger *logrus.Logger
	reader countryReader
}

// NewLocator opens a MaxMind country database. An empty path yields a locator that
// knows nothing.
func NewLocator(logger *logrus.Logger, path string) (Locator, error) {
	if path == "" {
		return noopLocator{}, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	logger.WithField("path", path).Info("geoip database loaded")
	return &maxmindLocator{logger: logger, reader: reader}, nil
}

func (l *maxmindLocator) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := l.reader.Country(parsed)
	if err != nil {
		l.logger.WithError(err).Debug("geoip lookup failed")
		return ""
	}
	return record.Country.IsoCode
}

func (l *maxmindLocator) Close() error {
	return l.reader.Close()
}

type noopLocator struct{}

func (noopLocator) Country(string) string { return "" }

func (noopLocator) Close() error { return nil }
