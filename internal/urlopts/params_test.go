package urlopts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSearchParams_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SearchParams
		wantErr bool
	}{
		{
			name:  "object keeps document order",
			input: `{"z": 1, "a": "x", "m": true}`,
			want:  SearchParams{{"z", "1"}, {"a", "x"}, {"m", "true"}},
		},
		{
			name:  "object with null and float",
			input: `{"a": null, "b": 1.5}`,
			want:  SearchParams{{"a", ""}, {"b", "1.5"}},
		},
		{
			name:  "pairs keep duplicates",
			input: `[["a", "1"], ["a", 2]]`,
			want:  SearchParams{{"a", "1"}, {"a", "2"}},
		},
		{
			name:  "empty object is still set",
			input: `{}`,
			want:  SearchParams{},
		},
		{
			name:    "nested value",
			input:   `{"a": {"b": 1}}`,
			wantErr: true,
		},
		{
			name:    "bad pair",
			input:   `[["a"]]`,
			wantErr: true,
		},
		{
			name:    "scalar",
			input:   `"a=1"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sp SearchParams
			err := json.Unmarshal([]byte(tt.input), &sp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sp)
			assert.NotNil(t, sp)
		})
	}
}

func TestOptions_UnmarshalJSON(t *testing.T) {
	var opts Options
	err := json.Unmarshal([]byte(`{
		"origin": "https://google.com/?a=1",
		"port": 8888,
		"searchParams": {"b": 2},
		"auth": ""
	}`), &opts)
	require.NoError(t, err)

	assert.Equal(t, "https://google.com/?a=1", opts.Origin)
	assert.Equal(t, 8888, opts.Port)
	assert.Equal(t, Params("b", "2"), opts.SearchParams)
	require.NotNil(t, opts.Auth)
	assert.Equal(t, "", *opts.Auth)

	var noParams Options
	require.NoError(t, json.Unmarshal([]byte(`{"origin": "https://google.com", "searchParams": null}`), &noParams))
	assert.Nil(t, noParams.SearchParams)
}

func TestOptions_UnmarshalYAML(t *testing.T) {
	var opts Options
	err := yaml.Unmarshal([]byte(`
protocol: "https:"
hostname: google.com
searchParams:
  z: 1
  a: two
  flag: false
`), &opts)
	require.NoError(t, err)

	assert.Equal(t, "https:", opts.Protocol)
	assert.Equal(t, "google.com", opts.Hostname)
	assert.Equal(t, SearchParams{{"z", "1"}, {"a", "two"}, {"flag", "false"}}, opts.SearchParams)

	var pairs Options
	err = yaml.Unmarshal([]byte(`
origin: https://x
searchParams:
  - [a, 1]
  - [a, 2]
`), &pairs)
	require.NoError(t, err)
	assert.Equal(t, Params("a", "1", "a", "2"), pairs.SearchParams)

	var bad Options
	assert.Error(t, yaml.Unmarshal([]byte("searchParams: nope\n"), &bad))
}

func TestSearchParams_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Params("a", "1", "a", "2"))
	require.NoError(t, err)
	assert.JSONEq(t, `[["a","1"],["a","2"]]`, string(data))

	var back SearchParams
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Params("a", "1", "a", "2"), back)
}

func TestParamHelpers(t *testing.T) {
	assert.Equal(t, SearchParams{{"a", "1"}, {"b", ""}}, Params("a", "1", "b"))
	assert.Equal(t, SearchParams{{"a", "1"}, {"b", "true"}, {"c", "x"}},
		ParamsFromMap(map[string]any{"c": "x", "a": 1, "b": true}))
	assert.Equal(t, Param{Name: "q", Value: "a=b"}, ParseParam("q=a=b"))
	assert.Equal(t, Param{Name: "flag"}, ParseParam("flag"))

	v, ok := Params("a", "1", "a", "2").Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = Params("a", "1").Get("b")
	assert.False(t, ok)
}

func TestMerge(t *testing.T) {
	base := Options{
		Origin:       "https://api.example.com",
		Username:     "svc",
		SearchParams: Params("key", "k"),
	}

	merged := Merge(base, Options{Pathname: "/v1/items", SearchParams: Params("page", "2")})
	assert.Equal(t, "https://api.example.com", merged.Origin)
	assert.Equal(t, "/v1/items", merged.Pathname)
	assert.Equal(t, "svc", merged.Username)
	assert.Equal(t, Params("key", "k", "page", "2"), merged.SearchParams)

	// base is left untouched
	assert.Equal(t, Params("key", "k"), base.SearchParams)

	u, err := ToURL(merged)
	require.NoError(t, err)
	assert.Equal(t, "https://svc@api.example.com/v1/items?key=k&page=2", u.Href(false))

	overridden := Merge(base, Options{Origin: "https://other.example.com", Port: 8080, Auth: strPtr("a:b")})
	assert.Equal(t, "https://other.example.com", overridden.Origin)
	assert.Equal(t, 8080, overridden.Port)
	assert.NotNil(t, overridden.Auth)

	assert.Equal(t, Options{}, Merge(Options{}, Options{}))
}
