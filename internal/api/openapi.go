package api

import (
	"github.com/fundsight/tally/internal/config"
	"github.com/fundsight/tally/pkg/openapi"
)

// BuildSpec generates the OpenAPI document for the mounted API routes.
func BuildSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	spec.Components.AddSchemas(documentSchemas())
	spec.Components.AddSchemas(tagSchemas())
	spec.Components.AddSchemas(metricSchemas())

	addDocumentPaths(spec)
	addTagPaths(spec)
	addExtractionPaths(spec)
	addMetricPaths(spec)

	return spec
}

func documentSchemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Document": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid"},
				"filename":        {Type: "string"},
				"storage_key":     {Type: "string"},
				"original_format": {Type: "string", Enum: []any{"pdf", "xlsx", "xls", "csv", "txt", "md"}},
				"page_count":      {Type: "integer"},
				"size_bytes":      {Type: "integer"},
				"status":          {Type: "string", Enum: []any{"uploading", "analyzing", "complete", "error"}},
				"ai_confidence":   {Type: "integer", Description: "Confidence of the last AI run, 0-100"},
				"uploaded_at":     {Type: "string", Format: "date-time"},
				"updated_at":      {Type: "string", Format: "date-time"},
			},
		},
		"DocumentPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        {Type: "array", Items: openapi.SchemaRef("Document")},
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
		"UploadResponse": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":       {Type: "string", Format: "uuid"},
				"filename": {Type: "string"},
				"status":   {Type: "string"},
				"queued":   {Type: "boolean", Description: "Whether background extraction was enqueued"},
			},
		},
		"SearchRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"page":            {Type: "integer"},
				"page_size":       {Type: "integer"},
				"status":          {Type: "string"},
				"filename":        {Type: "string"},
				"original_format": {Type: "string"},
			},
		},
		"ExtractionResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":         {Type: "string", Format: "uuid"},
				"status":     {Type: "string"},
				"periods":    {Type: "array", Items: openapi.SchemaRef("Period")},
				"tags":       {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"confidence": {Type: "integer"},
				"degraded":   {Type: "boolean", Description: "True when no period was detected and the current month was substituted"},
			},
		},
	}
}

func tagSchemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Tag": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          {Type: "string", Format: "uuid"},
				"document_id": {Type: "string", Format: "uuid"},
				"kind":        {Type: "string", Enum: []any{"period", "type", "custom", "status"}},
				"value":       {Type: "string", Example: "7/2024"},
				"ai_detected": {Type: "boolean"},
				"confidence":  {Type: "integer"},
				"year":        {Type: "integer"},
				"month":       {Type: "integer"},
				"created_at":  {Type: "string", Format: "date-time"},
			},
		},
		"Period": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"year":       {Type: "integer", Minimum: f(1900), Maximum: f(2100)},
				"month":      {Type: "integer", Minimum: f(1), Maximum: f(12)},
				"confidence": {Type: "integer"},
			},
			Required: []string{"year", "month"},
		},
		"UpdateTagsRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"year":        {Type: "integer"},
				"month":       {Type: "integer"},
				"period_tags": {Type: "array", Items: openapi.SchemaRef("Period")},
				"custom_tags": {Type: "array", Items: &openapi.Schema{Type: "string"}},
			},
		},
	}
}

func metricSchemas() map[string]*openapi.Schema {
	figures := map[string]*openapi.Schema{
		"revenue":   {Type: "number"},
		"expenses":  {Type: "number"},
		"profit":    {Type: "number"},
		"cash_flow": {Type: "number"},
	}

	period := map[string]*openapi.Schema{
		"year":             {Type: "integer"},
		"month":            {Type: "integer"},
		"exists":           {Type: "boolean"},
		"documents":        {Type: "array", Items: openapi.SchemaRef("DocumentSummary")},
		"last_analyzed_at": {Type: "string", Format: "date-time"},
	}
	for k, v := range figures {
		period[k] = v
	}

	analyze := map[string]*openapi.Schema{
		"year":           {Type: "integer"},
		"month":          {Type: "integer"},
		"analysis_notes": {Type: "string"},
		"document_count": {Type: "integer"},
		"message":        {Type: "string", Description: "Set when no documents could be resolved"},
	}
	for k, v := range figures {
		analyze[k] = v
	}

	return map[string]*openapi.Schema{
		"DocumentSummary": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":       {Type: "string", Format: "uuid"},
				"filename": {Type: "string"},
			},
		},
		"PeriodMetric": {Type: "object", Properties: period},
		"MonthCell": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"month":            {Type: "integer"},
				"name":             {Type: "string", Example: "July"},
				"hasData":          {Type: "boolean"},
				"metrics":          {Type: "object", Properties: figures},
				"documents":        {Type: "array", Items: openapi.SchemaRef("DocumentSummary")},
				"lastAnalysisDate": {Type: "string", Format: "date-time"},
			},
		},
		"YearTable": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"year":   {Type: "integer"},
				"months": {Type: "array", Items: openapi.SchemaRef("MonthCell")},
			},
		},
		"AnalyzeRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"document_ids": {Type: "array", Items: &openapi.Schema{Type: "string", Format: "uuid"}},
			},
		},
		"AnalyzeResult": {Type: "object", Properties: analyze},
		"AddToRecordsRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"analyze": {Type: "boolean", Description: "Recompute affected periods after enrollment"},
			},
		},
		"AddResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":       {Type: "string", Format: "uuid"},
				"status":   {Type: "string", Example: "added_to_records"},
				"periods":  {Type: "integer"},
				"analyzed": {Type: "boolean"},
			},
		},
		"AssociateResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"year":         {Type: "integer"},
				"month":        {Type: "integer"},
				"document_ids": {Type: "array", Items: &openapi.Schema{Type: "string", Format: "uuid"}},
				"message":      {Type: "string"},
			},
		},
	}
}

func addDocumentPaths(spec *openapi.Spec) {
	spec.Paths["/documents"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List documents",
			Tags:    []string{"documents"},
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("page", "integer", "Page number", false),
				openapi.QueryParam("page_size", "integer", "Results per page", false),
				openapi.QueryParam("status", "string", "Filter by lifecycle status", false),
				openapi.QueryParam("filename", "string", "Filter by filename substring", false),
				openapi.QueryParam("original_format", "string", "Filter by source format", false),
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Paginated documents", "DocumentPage"),
			},
		},
	}

	spec.Paths["/documents/recent"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Recently uploaded documents",
			Tags:    []string{"documents"},
			Parameters: []*openapi.Parameter{
				openapi.QueryParam("limit", "integer", "Maximum documents to return", false),
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Documents, newest first", "Document"),
			},
		},
	}

	spec.Paths["/documents/upload"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Upload a document",
			Description: "Registers the document, stores the blob, and queues background extraction.",
			Tags:        []string{"documents"},
			RequestBody: &openapi.RequestBody{
				Required: true,
				Content: map[string]*openapi.MediaType{
					"multipart/form-data": {
						Schema: &openapi.Schema{
							Type: "object",
							Properties: map[string]*openapi.Schema{
								"file": {Type: "string", Format: "binary"},
							},
							Required: []string{"file"},
						},
					},
				},
			},
			Responses: map[int]*openapi.Response{
				202: openapi.ResponseJSON("Upload accepted", "UploadResponse"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/documents/search"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Search documents",
			Tags:        []string{"documents"},
			RequestBody: openapi.RequestBodyJSON("SearchRequest", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Paginated documents", "DocumentPage"),
			},
		},
	}

	spec.Paths["/documents/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Get a document",
			Tags:       []string{"documents"},
			Parameters: []*openapi.Parameter{openapi.PathParam("id", "Document ID")},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("The document", "Document"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Delete: &openapi.Operation{
			Summary:     "Delete a document",
			Description: "Removes the document, its tags, parsed content, and metric memberships.",
			Tags:        []string{"documents"},
			Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Document ID")},
			Responses: map[int]*openapi.Response{
				204: {Description: "Deleted"},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
}

func addTagPaths(spec *openapi.Spec) {
	spec.Paths["/documents/{id}/tags"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List document tags",
			Tags:    []string{"tags"},
			Parameters: []*openapi.Parameter{
				openapi.PathParam("id", "Document ID"),
				openapi.QueryParam("kind", "string", "Filter by tag kind (period, type, custom, status)", false),
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Document tags", "Tag"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/documents/{id}/update-tags"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Correct document tags",
			Description: "Replaces period and custom tags manually. The document is detached from metrics whose period no longer matches.",
			Tags:        []string{"tags"},
			Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Document ID")},
			RequestBody: openapi.RequestBodyJSON("UpdateTagsRequest", true),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Updated tags", "Tag"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}
}

func addExtractionPaths(spec *openapi.Spec) {
	spec.Paths["/documents/{id}/process"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Process a document",
			Description: "Runs the OCR and AI pipeline synchronously and applies the detected tags.",
			Tags:        []string{"extraction"},
			Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Document ID")},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Run summary", "ExtractionResult"),
				404: openapi.ResponseRef("NotFound"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}

	spec.Paths["/documents/{id}/analyze-period"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Re-detect reporting periods",
			Description: "Re-runs period detection against the stored parsed content without changing the document status.",
			Tags:        []string{"extraction"},
			Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Document ID")},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Detection summary", "ExtractionResult"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
}

func addMetricPaths(spec *openapi.Spec) {
	yearMonth := []*openapi.Parameter{
		{Name: "year", In: "path", Required: true, Schema: &openapi.Schema{Type: "integer"}},
		{Name: "month", In: "path", Required: true, Schema: &openapi.Schema{Type: "integer"}},
	}

	spec.Paths["/metrics/{year}/{month}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:     "Get period metric",
			Description: "Returns a zero-valued result with exists=false when the period has no metric.",
			Tags:        []string{"metrics"},
			Parameters:  yearMonth,
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Period metric", "PeriodMetric"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/metrics/table/{year}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Yearly metrics table",
			Tags:       []string{"metrics"},
			Parameters: yearMonth[:1],
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Twelve month cells", "YearTable"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/metrics/analyze/{year}/{month}"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Recompute period figures",
			Description: "Aggregates financial figures from the parsed content of the period's documents.",
			Tags:        []string{"metrics"},
			Parameters:  yearMonth,
			RequestBody: openapi.RequestBodyJSON("AnalyzeRequest", false),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Analysis result", "AnalyzeResult"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}

	spec.Paths["/documents/{id}/add-to-records"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Enroll a document in metrics",
			Description: "Attaches the document to the metric of every complete period tag it carries.",
			Tags:        []string{"metrics"},
			Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Document ID")},
			RequestBody: openapi.RequestBodyJSON("AddToRecordsRequest", false),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Enrollment result", "AddResult"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}

	spec.Paths["/admin/force-analyze/{year}/{month}"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Force period membership",
			Description: "Rewrites a metric's membership to exactly the given documents without recomputing figures.",
			Tags:        []string{"admin"},
			Parameters:  yearMonth,
			RequestBody: openapi.RequestBodyJSON("AnalyzeRequest", false),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Association result", "AssociateResult"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}
}

func f(v float64) *float64 { return &v }
