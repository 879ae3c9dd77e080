package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/config"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

const geoUpdateInterval = 24 * time.Hour

type geoReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Metadata() maxminddb.Metadata
	Close() error
}

// GeoLocation is the coarse position of an IP. Empty fields mean the database
// had no name for them.
type GeoLocation struct {
	City    string
	Country string
}

type GeoIPService struct {
	cfg       config.Config
	logger    *slog.Logger
	geoReader geoReader
	geoLock   sync.RWMutex
}

func NewGeoIPService(cfg config.Config, logger *slog.Logger) *GeoIPService {
	return &GeoIPService{
		cfg:    cfg,
		logger: logger,
	}
}

// Init opens the local database, downloading it first when MaxMind
// credentials are configured and the file is missing. An existing file is
// used even without credentials.
func (s *GeoIPService) Init() {
	dbPath := s.cfg.MaxMindDBPath
	if dbPath == "" {
		s.logger.Warn("GeoIP: no database path configured, lookups disabled")
		return
	}

	_, statErr := os.Stat(dbPath)
	if os.IsNotExist(statErr) {
		if s.cfg.MaxMindAccountID == "" || s.cfg.MaxMindLicenseKey == "" {
			s.logger.Warn("GeoIP: database missing and MaxMind credentials not set, lookups disabled", "path", dbPath)
			return
		}

		dbDir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			s.logger.Error("GeoIP: Failed to create directory", "dir", dbDir, "error", err)
			return
		}

		s.logger.Info("GeoIP: Database missing, downloading...")
		if err := s.updateGeoDB(); err != nil {
			s.logger.Error("GeoIP: Initial download failed", "error", err)
			return
		}
	}

	s.reloadReader(dbPath)
}

func (s *GeoIPService) StartUpdater(ctx context.Context) {
	s.StartUpdaterWithInterval(ctx, geoUpdateInterval)
}

func (s *GeoIPService) StartUpdaterWithInterval(ctx context.Context, interval time.Duration) {
	if s.cfg.MaxMindAccountID == "" || s.cfg.MaxMindLicenseKey == "" {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Info("GeoIP: Running scheduled update...")
			if err := s.updateGeoDB(); err != nil {
				s.logger.Error("GeoIP: Update failed", "error", err)
				continue
			}
			s.reloadReader(s.cfg.MaxMindDBPath)
		case <-ctx.Done():
			s.logger.Info("GeoIP: Updater stopping")
			return
		}
	}
}

func (s *GeoIPService) updateGeoDB() error {
	dbDir := filepath.Dir(s.cfg.MaxMindDBPath)
	confPath := filepath.Join(dbDir, "GeoIP.conf")

	content := fmt.Sprintf("AccountID %s\nLicenseKey %s\nEditionIDs %s\nDatabaseDirectory %s\n",
		s.cfg.MaxMindAccountID, s.cfg.MaxMindLicenseKey, s.cfg.MaxMindEditionIDs, dbDir)

	if err := os.WriteFile(confPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write GeoIP.conf: %w", err)
	}
	defer os.Remove(confPath)

	cmd := exec.Command("geoipupdate", "-v", "-f", confPath, "-d", dbDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("geoipupdate failed: %w, output: %s", err, string(output))
	}

	s.logger.Info("GeoIP: Database updated successfully")
	return nil
}

func (s *GeoIPService) reloadReader(path string) {
	s.geoLock.Lock()
	defer s.geoLock.Unlock()

	if s.geoReader != nil {
		s.geoReader.Close()
		s.geoReader = nil
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		s.logger.Error("GeoIP: Failed to open database", "path", path, "error", err)
		return
	}
	s.geoReader = reader

	meta := reader.Metadata()
	s.logger.Info("GeoIP: Loaded database", "type", meta.DatabaseType, "epoch", meta.BuildEpoch)
}

func (s *GeoIPService) Close() {
	s.geoLock.Lock()
	defer s.geoLock.Unlock()

	if s.geoReader != nil {
		s.geoReader.Close()
		s.geoReader = nil
	}
}

// Lookup returns ok=false when no database is loaded, the IP does not parse,
// or the database has no record for it.
func (s *GeoIPService) Lookup(ipStr string) (GeoLocation, bool) {
	s.geoLock.RLock()
	defer s.geoLock.RUnlock()

	if s.geoReader == nil {
		return GeoLocation{}, false
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return GeoLocation{}, false
	}

	record, err := s.geoReader.City(ip)
	if err != nil {
		s.logger.Error("GeoIP: Lookup error", "ip", ipStr, "error", err)
		return GeoLocation{}, false
	}

	var loc GeoLocation
	if name, ok := record.Country.Names["en"]; ok {
		loc.Country = name
	} else {
		loc.Country = record.Country.IsoCode
	}
	if name, ok := record.City.Names["en"]; ok {
		loc.City = name
	}

	if loc.Country == "" && loc.City == "" {
		return GeoLocation{}, false
	}
	return loc, true
}
