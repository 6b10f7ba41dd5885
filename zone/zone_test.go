package zone

import (
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtnet/rrdns/dnsmsg"
)

const testZone = `
; authoritative data for example.com
example.com.      3600 NS    ns1.example.com.
ns1.example.com.  3600 A     192.0.2.1
www.example.com.   300 CNAME host.example.com. ; web frontend
host.example.com.  300 A     192.0.2.7
host.example.com.  300 A     192.0.2.8
`

func TestZoneParse(t *testing.T) {
	t.Parallel()

	z, err := Parse(strings.NewReader(testZone))
	require.NoError(t, err)
	assert.Equal(t, 4, z.Names())

	set := z.Lookup("host.example.com.", dnsmsg.TypeA)
	require.Len(t, set, 2)
	assert.Equal(t, "192.0.2.7", set[0].Data.String())
	assert.Equal(t, "192.0.2.8", set[1].Data.String())
	assert.Equal(t, uint32(300), set[0].TTL)

	set = z.Lookup("www.example.com.", dnsmsg.TypeCNAME)
	require.Len(t, set, 1)
	assert.Equal(t, "host.example.com.", set[0].Data.String())

	set = z.Lookup("example.com.", dnsmsg.TypeNS)
	require.Len(t, set, 1)

	assert.Empty(t, z.Lookup("example.com.", dnsmsg.TypeA))
	assert.Empty(t, z.Lookup("unknown.example.com.", dnsmsg.TypeA))
}

func TestZoneParseBadLines(t *testing.T) {
	t.Parallel()

	z, err := Parse(strings.NewReader(`
good.example.com. 60 A 192.0.2.1
missing-fields. 60 A
bad-ttl. soon A 192.0.2.2
bad-type. 60 MX mail.example.com.
bad-data. 60 A not-an-ip
also-good. 60 A 192.0.2.3
`))
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 4)

	// The parseable lines still make it into the zone.
	assert.Len(t, z.Lookup("good.example.com.", dnsmsg.TypeA), 1)
	assert.Len(t, z.Lookup("also-good.", dnsmsg.TypeA), 1)
}

func TestRootHints(t *testing.T) {
	t.Parallel()

	z, err := Parse(strings.NewReader(`
.                   3600000 NS a.root-servers.net.
.                   3600000 NS b.root-servers.net.
a.root-servers.net. 3600000 A  198.41.0.4
b.root-servers.net. 3600000 A  170.247.170.2
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"198.41.0.4", "170.247.170.2"}, RootHints(z))

	empty, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, RootHints(empty))
}
