package loader_test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lc/stampede/internal/filesys"
	"github.com/lc/stampede/internal/loader"
)

type LoaderTestSuite struct {
	suite.Suite
	dir string
}

func (s *LoaderTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *LoaderTestSuite) write(name, content string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (s *LoaderTestSuite) TestResolvers() {
	path := s.write("resolvers.txt", `
1.1.1.1
8.8.8.8:5353
# a comment

	9.9.9.9
not-an-ip
300.300.300.300
8.8.8.8:notaport
1.1.1.1:99999
5.5.5.5:0
[2001:db8::1]:53
2001:db8::2
`)

	resolvers, err := loader.Resolvers(filesys.OS(), path)
	s.Require().NoError(err)
	s.Equal([]string{
		"1.1.1.1:53",
		"8.8.8.8:5353",
		"9.9.9.9:53",
		"[2001:db8::1]:53",
		"[2001:db8::2]:53",
	}, resolvers)
}

func (s *LoaderTestSuite) TestResolversAllInvalid() {
	path := s.write("resolvers.txt", "# only comments\nnope\n")

	_, err := loader.Resolvers(filesys.OS(), path)
	s.ErrorIs(err, loader.ErrNoResolvers)
}

func (s *LoaderTestSuite) TestResolversMissingFile() {
	_, err := loader.Resolvers(filesys.OS(), filepath.Join(s.dir, "missing.txt"))
	s.Error(err)
}

func (s *LoaderTestSuite) TestCandidates() {
	path := s.write("domains.txt", `
Example.COM
sub.example.com
# skip me
invalid..domain
.leading.dot
`+string(bytesOf('a', 260))+`
ok-domain.org
`)

	names, err := loader.Candidates(filesys.OS(), path)
	s.Require().NoError(err)
	s.Equal([]string{"example.com", "sub.example.com", "ok-domain.org"}, names)
}

func (s *LoaderTestSuite) TestCandidatesEmpty() {
	path := s.write("domains.txt", "#nothing here\n\n")

	_, err := loader.Candidates(filesys.OS(), path)
	s.ErrorIs(err, loader.ErrNoCandidates)
}

func (s *LoaderTestSuite) TestWordlist() {
	path := s.write("words.txt", `
www
API
# comment
bad..label
_dmarc
`)

	names, err := loader.Wordlist(filesys.OS(), path, "Example.com")
	s.Require().NoError(err)
	s.Equal([]string{"www.example.com", "api.example.com", "_dmarc.example.com"}, names)
}

func (s *LoaderTestSuite) TestWordlistBadBaseDomain() {
	path := s.write("words.txt", "www\n")

	_, err := loader.Wordlist(filesys.OS(), path, "not a domain!")
	s.Error(err)
}

func (s *LoaderTestSuite) TestValidDomain() {
	testCases := []struct {
		name   string
		domain string
		valid  bool
	}{
		{name: "simple", domain: "example.com", valid: true},
		{name: "subdomain", domain: "a.b.example.com", valid: true},
		{name: "hyphen and underscore", domain: "_spf.my-host.example.com", valid: true},
		{name: "single label", domain: "localhost", valid: true},
		{name: "empty", domain: "", valid: false},
		{name: "leading dot", domain: ".example.com", valid: false},
		{name: "trailing dot", domain: "example.com.", valid: false},
		{name: "empty label", domain: "a..com", valid: false},
		{name: "bad char", domain: "ex ample.com", valid: false},
		{name: "label too long", domain: string(bytesOf('a', 64)) + ".com", valid: false},
		{name: "name too long", domain: string(bytesOf('a', 254)), valid: false},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.valid, loader.ValidDomain(tc.domain))
		})
	}
}

func (s *LoaderTestSuite) TestShuffle() {
	names := []string{"a.com", "b.com", "c.com", "d.com", "e.com"}
	want := append([]string(nil), names...)

	loader.Shuffle(names)

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	s.Equal(want, sorted, "shuffle must preserve the element multiset")
}

func bytesOf(c byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return b
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderTestSuite))
}
