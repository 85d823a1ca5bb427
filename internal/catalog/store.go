package catalog

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"utility-bill-enrichment-backend/internal/services/matching"
)

// PropertyCandidate carries the extra fields the property resolver filters on.
type PropertyCandidate struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	LookupCode string `json:"lookup_code"`
}

// UOMMapping is one row of the unit-conversion table. An empty UtilityType
// means the row applies to every utility.
type UOMMapping struct {
	OriginalUOM string  `json:"original_uom"`
	UtilityType string  `json:"utility_type"`
	Factor      float64 `json:"conversion_factor"`
	TargetUOM   string  `json:"target_uom"`
}

// Prefixes locates the four catalog exports under the reference bucket.
type Prefixes struct {
	Vendor   string
	Property string
	GLAcct   string
	UOM      string
}

// Store loads and caches the reference catalogs. Loading happens once per
// process; a failed catalog degrades to an empty set rather than failing the
// engine, so callers observe zero matches instead of errors. Refreshing a
// catalog means constructing a new Store.
type Store struct {
	objects  ObjectStore
	prefixes Prefixes
	log      *logrus.Logger

	once sync.Once

	vendors     []matching.Candidate
	vendorIndex map[string]matching.Candidate
	properties  []PropertyCandidate
	glAccounts  []matching.Candidate
	uomMappings []UOMMapping
}

func NewStore(objects ObjectStore, prefixes Prefixes, log *logrus.Logger) *Store {
	return &Store{objects: objects, prefixes: prefixes, log: log}
}

// EnsureLoaded populates all catalogs exactly once. Safe for concurrent use.
func (s *Store) EnsureLoaded(ctx context.Context) {
	s.once.Do(func() {
		s.vendors, s.vendorIndex = s.loadVendors(ctx)
		s.properties = s.loadProperties(ctx)
		s.glAccounts = s.loadGLAccounts(ctx)
		s.uomMappings = s.loadUOMMappings(ctx)
	})
}

func (s *Store) Vendors() []matching.Candidate    { return s.vendors }
func (s *Store) Properties() []PropertyCandidate  { return s.properties }
func (s *Store) GLAccounts() []matching.Candidate { return s.glAccounts }
func (s *Store) UOMMappings() []UOMMapping        { return s.uomMappings }

// VendorByNormalizedName is the O(1) exact-match index built at load time.
func (s *Store) VendorByNormalizedName(name string) (matching.Candidate, bool) {
	c, ok := s.vendorIndex[matching.Normalize(name)]
	return c, ok
}

// WriteOutput persists enriched batch output next to the catalogs.
func (s *Store) WriteOutput(ctx context.Context, key string, data []byte) error {
	if s.objects == nil {
		return fmt.Errorf("object store not configured")
	}
	return s.objects.Write(ctx, key, data, "application/x-ndjson")
}

// loadRecords fetches the current export under a prefix. The standardized
// "latest.json.gz" alias is tried first to avoid a listing scan; on miss the
// most-recently-modified object wins.
func (s *Store) loadRecords(ctx context.Context, prefix string) ([]map[string]any, error) {
	if s.objects == nil {
		return nil, fmt.Errorf("object store not configured")
	}
	if prefix == "" {
		return nil, fmt.Errorf("catalog prefix not configured")
	}
	aliasKey := prefix + "latest.json.gz"
	if data, encoding, err := s.objects.Read(ctx, aliasKey); err == nil {
		return decodeRecords(aliasKey, data, encoding), nil
	}

	infos, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("no objects under %s", prefix)
	}
	latest := infos[0]
	for _, info := range infos[1:] {
		if info.Updated.After(latest.Updated) {
			latest = info
		}
	}
	data, encoding, err := s.objects.Read(ctx, latest.Key)
	if err != nil {
		return nil, err
	}
	return decodeRecords(latest.Key, data, encoding), nil
}

// decodeRecords tolerates gzip or plain payloads holding either a single JSON
// array or newline-delimited JSON. Unparsable lines are skipped, not fatal.
func decodeRecords(key string, data []byte, contentEncoding string) []map[string]any {
	isGz := strings.HasSuffix(strings.ToLower(key), ".gz") ||
		contentEncoding == "gzip" ||
		(len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b)
	if isGz {
		if gz, err := gzip.NewReader(bytes.NewReader(data)); err == nil {
			if plain, err := io.ReadAll(gz); err == nil {
				data = plain
			}
			gz.Close()
		}
	}

	var arr []map[string]any
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr
	}

	var records []map[string]any
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// firstString coalesces across the heterogeneous key spellings found in the
// catalog exports.
func firstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			switch t := v.(type) {
			case string:
				if s := strings.TrimSpace(t); s != "" {
					return s
				}
			case float64:
				return fmt.Sprintf("%v", t)
			}
		}
	}
	return ""
}

func (s *Store) loadVendors(ctx context.Context) ([]matching.Candidate, map[string]matching.Candidate) {
	index := map[string]matching.Candidate{}
	records, err := s.loadRecords(ctx, s.prefixes.Vendor)
	if err != nil {
		s.log.WithField("module", "catalog").Warn("vendor catalog unavailable: ", err)
		return nil, index
	}
	var vendors []matching.Candidate
	for _, r := range records {
		name := firstString(r, "VENDOR_NAME", "vendor_name", "Vendor Name", "name")
		if name == "" {
			continue
		}
		id := firstString(r, "VENDOR_ID", "vendor_id")
		if id == "" {
			id = name
		}
		cand := matching.Candidate{ID: id, Name: name}
		vendors = append(vendors, cand)
		index[matching.Normalize(name)] = cand
	}
	s.log.WithFields(logrus.Fields{"module": "catalog", "count": len(vendors)}).Info("loaded vendor candidates")
	return vendors, index
}

func (s *Store) loadProperties(ctx context.Context) []PropertyCandidate {
	records, err := s.loadRecords(ctx, s.prefixes.Property)
	if err != nil {
		s.log.WithField("module", "catalog").Warn("property catalog unavailable: ", err)
		return nil
	}
	var properties []PropertyCandidate
	for _, r := range records {
		name := firstString(r, "property_name", "Property Name", "PROPERTY_NAME", "name")
		if name == "" {
			continue
		}
		id := firstString(r, "property_id", "PROPERTY_ID")
		if id == "" {
			id = name
		}
		properties = append(properties, PropertyCandidate{
			ID:         id,
			Name:       name,
			State:      firstString(r, "GEO_STATE", "STATE", "state"),
			LookupCode: firstString(r, "LOOKUP_CODE", "PROPERTY_CODE", "code", "CODE"),
		})
	}
	s.log.WithFields(logrus.Fields{"module": "catalog", "count": len(properties)}).Info("loaded property candidates")
	return properties
}

func (s *Store) loadGLAccounts(ctx context.Context) []matching.Candidate {
	records, err := s.loadRecords(ctx, s.prefixes.GLAcct)
	if err != nil {
		s.log.WithField("module", "catalog").Warn("gl account catalog unavailable: ", err)
		return nil
	}
	var accounts []matching.Candidate
	for _, r := range records {
		name := firstString(r, "NAME", "name")
		if name == "" {
			continue
		}
		id := firstString(r, "GL_ACCOUNT_ID", "id")
		if id == "" {
			id = name
		}
		number := firstString(r,
			"FORMATTED_GL_ACCOUNT_NUMBER", "FORMATTED_ACCOUNT_NUMBER",
			"GL_ACCOUNT_NUMBER", "ACCOUNT_NUMBER",
			"formattedGlAccountNumber", "glAccountNumber",
			"ACCOUNT_NO", "GL_NUMBER", "number")
		accounts = append(accounts, matching.Candidate{ID: id, Name: name, Number: number})
	}
	s.log.WithFields(logrus.Fields{"module": "catalog", "count": len(accounts)}).Info("loaded gl account candidates")
	return accounts
}

func (s *Store) loadUOMMappings(ctx context.Context) []UOMMapping {
	records, err := s.loadRecords(ctx, s.prefixes.UOM)
	if err != nil {
		s.log.WithField("module", "catalog").Warn("uom mapping catalog unavailable: ", err)
		return nil
	}
	var mappings []UOMMapping
	for _, r := range records {
		original := firstString(r, "original_uom", "ORIGINAL_UOM")
		if original == "" {
			continue
		}
		factor := 1.0
		if v, ok := r["conversion_factor"].(float64); ok {
			factor = v
		} else if v, ok := r["CONVERSION_FACTOR"].(float64); ok {
			factor = v
		}
		mappings = append(mappings, UOMMapping{
			OriginalUOM: original,
			UtilityType: firstString(r, "utility_type", "UTILITY_TYPE"),
			Factor:      factor,
			TargetUOM:   firstString(r, "target_uom", "TARGET_UOM"),
		})
	}
	s.log.WithFields(logrus.Fields{"module": "catalog", "count": len(mappings)}).Info("loaded uom mappings")
	return mappings
}
