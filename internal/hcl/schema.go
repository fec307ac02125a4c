package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a load file may hold.
type fileRoot struct {
	Loads       []*loadBlock       `hcl:"load,block"`
	Collections []*collectionBlock `hcl:"collection,block"`
	Envs        []*envBlock        `hcl:"env,block"`
}

type loadBlock struct {
	Scenario string `hcl:"scenario,optional"`
	Method   string `hcl:"method,optional"`

	Bands []string `hcl:"bands,optional"`
	CRS   string   `hcl:"crs,optional"`
	// Resolution is a number or [x, y].
	Resolution hcl.Expression `hcl:"resolution,optional"`
	Anchor     string         `hcl:"anchor,optional"`
	Rotation   float64        `hcl:"rotation,optional"`
	BBox       []float64      `hcl:"bbox,optional"`

	GroupBy         string `hcl:"groupby,optional"`
	SortWithinGroup bool   `hcl:"sort_within_group,optional"`
	// Resampling is a method name or a map of band to method.
	Resampling hcl.Expression `hcl:"resampling,optional"`
	Chunks     map[string]int `hcl:"chunks,optional"`

	DataType     string         `hcl:"dtype,optional"`
	FillValue    hcl.Expression `hcl:"fill_value,optional"`
	Nodata       hcl.Expression `hcl:"nodata,optional"`
	Fuse         string         `hcl:"fuse,optional"`
	UseOverviews *bool          `hcl:"use_overviews,optional"`
	FailOnError  *bool          `hcl:"fail_on_error,optional"`

	Executor string `hcl:"executor,optional"`
	Workers  int    `hcl:"workers,optional"`
	PatchURL string `hcl:"patch_url,optional"`
}

type collectionBlock struct {
	Name       string `hcl:"name,label"`
	IgnoreProj bool   `hcl:"ignore_proj,optional"`
	Warnings   string `hcl:"warnings,optional"`
	AliasOrder string `hcl:"alias_order,optional"`
	// Aliases maps an alias to one band or a list of candidates.
	Aliases hcl.Expression `hcl:"aliases,optional"`
	Assets  []*assetBlock  `hcl:"asset,block"`
}

type assetBlock struct {
	Name     string `hcl:"name,label"`
	DataType string `hcl:"data_type,optional"`
	// Nodata is a number or one of "nan", "inf", "-inf".
	Nodata hcl.Expression `hcl:"nodata,optional"`
	Unit   string         `hcl:"unit,optional"`
}

type envBlock struct {
	AWSRegion        string            `hcl:"aws_region,optional"`
	AWSEndpoint      string            `hcl:"aws_s3_endpoint,optional"`
	AWSNoSignRequest *bool             `hcl:"aws_no_sign_request,optional"`
	RequesterPays    *bool             `hcl:"requester_pays,optional"`
	BearerToken      string            `hcl:"bearer_token,optional"`
	UserAgent        string            `hcl:"user_agent,optional"`
	Headers          map[string]string `hcl:"headers,optional"`
	Timeout          float64           `hcl:"timeout,optional"`
	RetryDelay       float64           `hcl:"retry_delay,optional"`
	MaxRetries       *int              `hcl:"max_retries,optional"`
}
