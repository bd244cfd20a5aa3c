package moderation

var ResponseSchema = responseSchema
