package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the map service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geometryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Geometry",
		Fields: graphql.Fields{
			"date":        &graphql.Field{Type: graphql.DateTime},
			"type":        &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: graphql.NewList(graphql.Float)},
		},
	})

	eventType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Event",
		Fields: graphql.Fields{
			"id":    &graphql.Field{Type: graphql.String},
			"title": &graphql.Field{Type: graphql.String},
			"link":  &graphql.Field{Type: graphql.String},
			"category": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					e, ok := p.Source.(domain.Event)
					if !ok {
						return nil, nil
					}
					id, _ := e.CategoryID()
					return id, nil
				},
			},
			"geometry": &graphql.Field{
				Type: graphql.NewList(geometryType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					e, ok := p.Source.(domain.Event)
					if !ok {
						return nil, nil
					}
					out := make([]map[string]interface{}, 0, len(e.Geometry))
					for _, g := range e.Geometry {
						out = append(out, map[string]interface{}{
							"date":        g.Date,
							"type":        g.Type,
							"coordinates": g.Coordinates,
						})
					}
					return out, nil
				},
			},
		},
	})

	clusterType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.Int},
			"kind":        &graphql.Field{Type: graphql.String},
			"lat":         &graphql.Field{Type: graphql.Float},
			"lng":         &graphql.Field{Type: graphql.Float},
			"point_count": &graphql.Field{Type: graphql.Int},
			"event_id":    &graphql.Field{Type: graphql.String},
			"title":       &graphql.Field{Type: graphql.String},
		},
	})

	datasetType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Dataset",
		Fields: graphql.Fields{
			"version":     &graphql.Field{Type: graphql.String},
			"fingerprint": &graphql.Field{Type: graphql.String},
			"category":    &graphql.Field{Type: graphql.String},
			"events":      &graphql.Field{Type: graphql.Int},
			"points":      &graphql.Field{Type: graphql.Int},
			"skipped":     &graphql.Field{Type: graphql.Int},
			"built_at":    &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"events": &graphql.Field{
				Type:        graphql.NewList(eventType),
				Description: "Served events, optionally inside a viewport",
				Args: graphql.FieldConfigArgument{
					"nw_lat": &graphql.ArgumentConfig{Type: graphql.Float},
					"nw_lng": &graphql.ArgumentConfig{Type: graphql.Float},
					"se_lat": &graphql.ArgumentConfig{Type: graphql.Float},
					"se_lng": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var vp *domain.Viewport
					nwLat, ok1 := p.Args["nw_lat"].(float64)
					nwLng, ok2 := p.Args["nw_lng"].(float64)
					seLat, ok3 := p.Args["se_lat"].(float64)
					seLng, ok4 := p.Args["se_lng"].(float64)
					if ok1 && ok2 && ok3 && ok4 {
						vp = &domain.Viewport{
							NorthWest: domain.LatLng{Lat: nwLat, Lng: nwLng},
							SouthEast: domain.LatLng{Lat: seLat, Lng: seLng},
						}
					}
					return deps.Maps.Events(vp)
				},
			},
			"clusters": &graphql.Field{
				Type:        graphql.NewList(clusterType),
				Description: "Markers visible in a bounding box at a zoom level",
				Args: graphql.FieldConfigArgument{
					"west":  &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: -180.0},
					"south": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: -90.0},
					"east":  &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 180.0},
					"north": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 90.0},
					"zoom":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					bbox := domain.BBox{
						West:  p.Args["west"].(float64),
						South: p.Args["south"].(float64),
						East:  p.Args["east"].(float64),
						North: p.Args["north"].(float64),
					}
					results, err := deps.Maps.Clusters(p.Context, bbox, p.Args["zoom"].(int), false)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(results))
					for _, r := range results {
						m := map[string]interface{}{
							"id":          r.ID,
							"kind":        string(r.Kind),
							"lat":         r.Lat,
							"lng":         r.Lng,
							"point_count": r.PointCount,
						}
						if r.Point != nil {
							m["event_id"] = r.Point.ID
							if r.Point.Event != nil {
								m["title"] = r.Point.Event.Title
							}
						}
						out = append(out, m)
					}
					return out, nil
				},
			},
			"clusterLeaves": &graphql.Field{
				Type:        graphql.NewList(graphql.String),
				Description: "Event ids aggregated by a cluster",
				Args: graphql.FieldConfigArgument{
					"id":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Maps.Leaves(p.Context, p.Args["id"].(int), p.Args["limit"].(int), p.Args["offset"].(int))
				},
			},
			"dataset": &graphql.Field{
				Type:        datasetType,
				Description: "The dataset currently indexed",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					info, ok := deps.Maps.Dataset()
					if !ok {
						return nil, nil
					}
					return map[string]interface{}{
						"version":     formatVersion(info.Version),
						"fingerprint": info.Fingerprint,
						"category":    info.Category,
						"events":      info.Events,
						"points":      info.Points,
						"skipped":     info.Skipped,
						"built_at":    info.BuiltAt,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
