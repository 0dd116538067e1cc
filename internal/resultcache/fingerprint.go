package resultcache

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AmirulAndalib/typeorm/internal/sqlnorm"
)

// keyPrefix marks fingerprint-derived identifiers so they cannot collide
// with caller-supplied ones that avoid the prefix.
const keyPrefix = "qrc"

// Fingerprint derives a deterministic identifier from a query's normalized
// text and its ordered bound parameters. Identical text and parameters
// always produce the same identifier; any difference in either, pagination
// and ordering clauses included, produces a different one with overwhelming
// probability. The output is a pure function of the input.
func Fingerprint(query string, params []any) string {
	return fingerprintNormalized(sqlnorm.Normalize(query), params)
}

func fingerprintNormalized(normalized string, params []any) string {
	h := sha256.New()
	writeFramed(h, []byte(normalized))
	for _, p := range params {
		writeFramed(h, []byte(encodeParam(p)))
	}
	sum := h.Sum(nil)
	return keyPrefix + ":" + hex.EncodeToString(sum[:16]) // use first 128 bits
}

// writeFramed length-prefixes each segment of the hash input. Segment
// boundaries stay unambiguous even when a parameter value contains bytes
// that look like another segment's encoding.
func writeFramed(h hash.Hash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	h.Write(n[:])
	h.Write(b)
}

// encodeParam renders a parameter value in a canonical, type-tagged form so
// that values of different types never alias (the string "1" vs the int 1).
func encodeParam(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case bool:
		return "b:" + strconv.FormatBool(v)
	case int:
		return "i:" + strconv.FormatInt(int64(v), 10)
	case int8:
		return "i:" + strconv.FormatInt(int64(v), 10)
	case int16:
		return "i:" + strconv.FormatInt(int64(v), 10)
	case int32:
		return "i:" + strconv.FormatInt(int64(v), 10)
	case int64:
		return "i:" + strconv.FormatInt(v, 10)
	case uint:
		return "u:" + strconv.FormatUint(uint64(v), 10)
	case uint8:
		return "u:" + strconv.FormatUint(uint64(v), 10)
	case uint16:
		return "u:" + strconv.FormatUint(uint64(v), 10)
	case uint32:
		return "u:" + strconv.FormatUint(uint64(v), 10)
	case uint64:
		return "u:" + strconv.FormatUint(v, 10)
	case float32:
		return "f:" + strconv.FormatFloat(float64(v), 'g', -1, 64)
	case float64:
		return "f:" + strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return "s:" + v
	case []byte:
		return "x:" + hex.EncodeToString(v)
	case time.Time:
		return "t:" + strconv.FormatInt(v.UnixMilli(), 10)
	case decimal.Decimal:
		return "d:" + v.String()
	case driver.Valuer:
		resolved, err := v.Value()
		if err == nil {
			return encodeParam(resolved)
		}
		return fmt.Sprintf("v:%v", v)
	default:
		return fmt.Sprintf("v:%v", v)
	}
}
