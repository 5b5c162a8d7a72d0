package validators

import "go.mongodb.org/mongo-driver/bson"

var VehicleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"host_id", "make", "model", "year", "daily_rate"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":     bson.M{"bsonType": "objectId"},
			"host_id": bson.M{"bsonType": "string", "minLength": 1},
			"make":    bson.M{"bsonType": "string"},
			"model":   bson.M{"bsonType": "string"},
			"year":    bson.M{"bsonType": []string{"int", "long"}, "minimum": 1900},
			"daily_rate": bson.M{
				"bsonType":         []string{"double", "int", "long", "decimal"},
				"exclusiveMinimum": 0,
			},
		},
	},
}

var PartyValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"display_name"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":          bson.M{"bsonType": []string{"string", "objectId"}},
			"display_name": bson.M{"bsonType": "string", "maxLength": 200},
		},
	},
}

var VehicleLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "expires_at"},
		"additionalProperties": false,
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
