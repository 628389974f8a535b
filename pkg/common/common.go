package common

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	NA       = "N/A"
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var snowflakeNode *snowflake.Node

func init() {
	var nodeID int64 = 1
	if v := os.Getenv("WABLAST_NODE_ID"); v != "" {
		if p, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = p % 1024
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		panic(err)
	}
	snowflakeNode = node
}

// UUIDint64 returns a snowflake int64 id.
func UUIDint64() int64 {
	return snowflakeNode.Generate().Int64()
}

// UUID returns a snowflake id in base58 string form.
func UUID() string {
	return snowflakeNode.Generate().Base58()
}

func Sha256Hash(src string) string {
	h := sha256.New()
	h.Write([]byte(src))
	return hex.EncodeToString(h.Sum(nil))
}

// ParseInt64 parses s as int64, returning defval on failure.
func ParseInt64(s string, defval int64) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defval
	}
	return v
}

// FmtTime formats t in the layout the dashboard expects; zero time renders as N/A.
func FmtTime(t time.Time) string {
	if t.IsZero() {
		return NA
	}
	return t.Format("2006-01-02 15:04:05")
}
