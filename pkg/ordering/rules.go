package ordering

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
	"github.com/src-d/enry/v2"
)

// classifyOrder is the order in which buckets are tested. Feature is the default.
var classifyOrder = []Bucket{BucketConfig, BucketUtils, BucketCore, BucketTest, BucketDocs}

// DefaultPatterns returns the built-in glob patterns per bucket. A pattern
// matches when it matches the whole slash-separated path or any single
// segment of it.
func DefaultPatterns() map[Bucket][]string {
	return map[Bucket][]string{
		BucketConfig: {
			"*.json", "*.toml", "*.yaml", "*.yml", "*.ini", "*.cfg", "*.conf", "*.properties",
			".env", ".env.*", "*.lock", "go.mod", "go.sum", "go.work", "Makefile", "*.mk",
			"Dockerfile", "*.dockerfile", "docker-compose*", "CMakeLists.txt", "*.gradle",
			"*.gradle.kts", "pom.xml", "requirements*.txt", "setup.cfg", ".gitignore",
			".gitattributes", ".editorconfig", ".github", ".gitlab-ci.yml",
		},
		BucketUtils: {
			"*util*", "*Util*", "*helper*", "*Helper*", "lib", "libs", "common", "shared",
			"support", "third_party", "vendor",
		},
		BucketCore: {
			"*model*", "*Model*", "domain", "schema*", "*.proto", "*.graphql", "entity",
			"entities", "types", "types.*", "*_types.*", "core", "migration*",
		},
		BucketTest: {
			"test", "tests", "testing", "testdata", "__tests__", "spec", "specs", "fixtures",
			"*_test.*", "*_spec.*", "*.test.*", "*.spec.*", "test_*.py", "conftest.py",
			"*Test.java", "*Tests.*", "*Test.kt",
		},
		BucketDocs: {
			"doc", "docs", "documentation", "*.md", "*.markdown", "*.rst", "*.adoc", "*.txt",
			"README*", "CHANGELOG*", "LICENSE*", "CONTRIBUTING*", "AUTHORS*", "NOTICE*",
		},
	}
}

// Rules classifies paths into buckets.
type Rules struct {
	globs [bucketCount][]glob.Glob
}

// NewRules compiles the default patterns plus extra, whose patterns are
// tested before the defaults of the same bucket.
func NewRules(extra map[Bucket][]string) (*Rules, error) {
	rules := &Rules{}
	defaults := DefaultPatterns()

	for _, bucket := range classifyOrder {
		patterns := append(append([]string(nil), extra[bucket]...), defaults[bucket]...)

		for _, pattern := range patterns {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", bucket, pattern, err)
			}

			rules.globs[bucket] = append(rules.globs[bucket], g)
		}
	}

	return rules, nil
}

// MustDefaultRules returns the rules built from the default patterns.
func MustDefaultRules() *Rules {
	rules, err := NewRules(nil)
	if err != nil {
		panic(err)
	}

	return rules
}

// Classify returns the bucket of filePath.
func (r *Rules) Classify(filePath string) Bucket {
	clean := strings.TrimPrefix(path.Clean(strings.ReplaceAll(filePath, "\\", "/")), "./")
	segments := strings.Split(clean, "/")

	for _, bucket := range classifyOrder {
		if r.matches(bucket, clean, segments) || enryMatches(bucket, clean) {
			return bucket
		}
	}

	return BucketFeature
}

func (r *Rules) matches(bucket Bucket, full string, segments []string) bool {
	for _, g := range r.globs[bucket] {
		if g.Match(full) {
			return true
		}

		for _, segment := range segments {
			if g.Match(segment) {
				return true
			}
		}
	}

	return false
}

func enryMatches(bucket Bucket, filePath string) bool {
	switch bucket {
	case BucketConfig:
		return enry.IsConfiguration(filePath)
	case BucketUtils:
		return enry.IsVendor(filePath)
	case BucketDocs:
		return enry.IsDocumentation(filePath)
	case BucketCore, BucketFeature, BucketTest:
		return false
	default:
		return false
	}
}
