package labeling

var ResponseSchema = responseSchema
