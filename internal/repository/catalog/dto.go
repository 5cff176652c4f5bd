package catalog

import (
	"strconv"
	"strings"
	"time"

	domcat "github.com/kailas-cloud/musedex/internal/domain/catalog"
	"github.com/kailas-cloud/musedex/internal/domain/pipeline"
)

// listSeparator joins list values in a hash field and doubles as the TAG
// separator of list fields.
const listSeparator = "|"

// buildHashFields converts a record into a flat map for HSET.
// Times are stored as epoch milliseconds so they can be indexed as NUMERIC.
func buildHashFields(rec domcat.Record) map[string]string {
	schema := domcat.SchemaOf(rec.Kind())
	m := make(map[string]string, len(schema))
	for _, f := range schema {
		v, ok := rec.Get(f.Name)
		if !ok {
			continue
		}
		switch f.Type {
		case domcat.String:
			m[f.Name], _ = v.(string)
		case domcat.Number:
			n, _ := v.(float64)
			m[f.Name] = strconv.FormatFloat(n, 'f', -1, 64)
		case domcat.Time:
			t, _ := v.(time.Time)
			m[f.Name] = strconv.FormatInt(t.UnixMilli(), 10)
		case domcat.StringList:
			l, _ := v.([]string)
			m[f.Name] = strings.Join(l, listSeparator)
		case domcat.Bool:
			b, _ := v.(bool)
			m[f.Name] = strconv.FormatBool(b)
		case domcat.Ref:
			m[f.Name] = rec.Ref(f.Name)
		}
	}
	return m
}

// parseHashFields converts a flat hash back into a record. Fields that do
// not parse as their schema type are dropped.
func parseHashFields(kind domcat.Kind, id string, m map[string]string) domcat.Record {
	schema := domcat.SchemaOf(kind)
	fields := make(map[string]any, len(m))
	for _, f := range schema {
		raw, ok := m[f.Name]
		if !ok {
			continue
		}
		switch f.Type {
		case domcat.String, domcat.Ref:
			fields[f.Name] = raw
		case domcat.Number:
			if n, err := strconv.ParseFloat(raw, 64); err == nil {
				fields[f.Name] = n
			}
		case domcat.Time:
			if ms, err := strconv.ParseFloat(raw, 64); err == nil {
				fields[f.Name] = domcat.FromMillis(ms)
			}
		case domcat.StringList:
			if raw == "" {
				fields[f.Name] = []string{}
			} else {
				fields[f.Name] = strings.Split(raw, listSeparator)
			}
		case domcat.Bool:
			if b, err := strconv.ParseBool(raw); err == nil {
				fields[f.Name] = b
			}
		}
	}
	return domcat.Reconstruct(kind, id, fields)
}

func docFromHash(kind domcat.Kind, id string, m map[string]string) pipeline.Doc {
	return pipeline.FromRecord(parseHashFields(kind, id, m))
}
