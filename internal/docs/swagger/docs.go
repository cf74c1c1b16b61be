// Package swagger provides Swagger documentation for the API.
// This file is a placeholder listing the routes. Run `swag init -g internal/api/server.go -o internal/docs/swagger`
// to generate the full documentation from the handler annotations.
package swagger

// SwaggerInfo holds the generated Swagger documentation
var SwaggerInfo struct {
	ReadDoc func() string
}

func init() {
	SwaggerInfo.ReadDoc = func() string {
		return `{"swagger":"2.0","info":{"title":"Cloud Cost Estimator API","version":"1.0"},"basePath":"/api/v1","paths":{` +
			`"/":{"get":{"tags":["health"],"summary":"Service information"}},` +
			`"/health":{"get":{"tags":["health"],"summary":"Health check"}},` +
			`"/providers":{"get":{"tags":["catalog"],"summary":"List providers"}},` +
			`"/resource-types":{"get":{"tags":["catalog"],"summary":"List resource types and their options"}},` +
			`"/instance-types":{"get":{"tags":["catalog"],"summary":"Instance type behind each compute size"}},` +
			`"/storage-services":{"get":{"tags":["catalog"],"summary":"Storage service behind each storage tier"}},` +
			`"/database-services":{"get":{"tags":["catalog"],"summary":"Managed database service behind each database type"}},` +
			`"/estimate/compute":{"post":{"tags":["estimates"],"summary":"Estimate compute cost"}},` +
			`"/estimate/storage":{"post":{"tags":["estimates"],"summary":"Estimate storage cost"}},` +
			`"/estimate/database":{"post":{"tags":["estimates"],"summary":"Estimate managed database cost"}},` +
			`"/estimate/full":{"post":{"tags":["estimates"],"summary":"Estimate a full stack"}},` +
			`"/compare":{"post":{"tags":["compare"],"summary":"Compare providers"}}` +
			`}}`
	}
}
