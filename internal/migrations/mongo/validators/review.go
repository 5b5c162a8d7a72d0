package validators

import "go.mongodb.org/mongo-driver/bson"

var ReviewValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"reviewer_id",
			"reviewee_id",
			"rating",
			"comment",
			"type",
			"created_at",
		},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "objectId"},
			"booking_id":  bson.M{"bsonType": "string", "minLength": 24, "maxLength": 24},
			"reviewer_id": bson.M{"bsonType": "string", "minLength": 1},
			"reviewee_id": bson.M{"bsonType": "string", "minLength": 1},
			"rating": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  5,
			},
			"comment": bson.M{
				"bsonType":  "string",
				"minLength": 10,
				"maxLength": 2000,
			},
			"type": bson.M{
				"bsonType": "string",
				"enum":     []string{"renter_to_host", "host_to_renter"},
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
