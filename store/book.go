package store

import (
	"context"
	"errors"
	"time"

	"github.com/kevinaaaquil/library/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertBook inserts book and fills in its ID. A duplicate title returns ErrDuplicate.
func (db *DB) InsertBook(ctx context.Context, book *models.Book) error {
	if book.ID.IsZero() {
		book.ID = primitive.NewObjectID()
	}
	if book.Likes == nil {
		book.Likes = []primitive.ObjectID{}
	}
	if book.Reviews == nil {
		book.Reviews = []models.Review{}
	}
	if _, err := db.Books().InsertOne(ctx, book); err != nil {
		return translate(err)
	}
	return nil
}

func (db *DB) AllBooks(ctx context.Context) ([]models.Book, error) {
	cur, err := db.Books().Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	books := []models.Book{}
	if err := cur.All(ctx, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (db *DB) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	if err := db.Books().FindOne(ctx, bson.M{"_id": id}).Decode(&book); err != nil {
		return nil, translate(err)
	}
	return &book, nil
}

func (db *DB) BookByTitle(ctx context.Context, title string) (*models.Book, error) {
	var book models.Book
	if err := db.Books().FindOne(ctx, bson.M{"title": title}).Decode(&book); err != nil {
		return nil, translate(err)
	}
	return &book, nil
}

// BooksByIDs returns the books that still exist among ids, keyed by id.
func (db *DB) BooksByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Book, error) {
	out := make(map[primitive.ObjectID]models.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := db.Books().Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"title": 1, "description": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var books []models.Book
	if err := cur.All(ctx, &books); err != nil {
		return nil, err
	}
	for _, b := range books {
		out[b.ID] = b
	}
	return out, nil
}

// DeleteBook removes a book by ID and returns the deleted document.
func (db *DB) DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	if err := db.Books().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&book); err != nil {
		return nil, translate(err)
	}
	return &book, nil
}

func (db *DB) updateBook(ctx context.Context, filter, update bson.M) (*models.Book, error) {
	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
		update["$set"] = set
	}
	set["updatedAt"] = time.Now().UTC()
	var book models.Book
	if err := db.Books().FindOneAndUpdate(ctx, filter, update, returnAfter).Decode(&book); err != nil {
		return nil, translate(err)
	}
	return &book, nil
}

func (db *DB) AddReview(ctx context.Context, id primitive.ObjectID, review models.Review) (*models.Book, error) {
	return db.updateBook(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"reviews": review}})
}

// AddLike records userID on the book. With allowDuplicates the id is pushed even if present.
func (db *DB) AddLike(ctx context.Context, id, userID primitive.ObjectID, allowDuplicates bool) (*models.Book, error) {
	op := "$addToSet"
	if allowDuplicates {
		op = "$push"
	}
	return db.updateBook(ctx, bson.M{"_id": id}, bson.M{op: bson.M{"likes": userID}})
}

// RemoveLike pulls every occurrence of userID from the book's likes.
func (db *DB) RemoveLike(ctx context.Context, id, userID primitive.ObjectID) (*models.Book, error) {
	return db.updateBook(ctx, bson.M{"_id": id}, bson.M{"$pull": bson.M{"likes": userID}})
}

func (db *DB) SetStock(ctx context.Context, id primitive.ObjectID, nonstock bool) (*models.Book, error) {
	return db.updateBook(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"nonstock": nonstock}})
}

// MarkBorrowed flips nonstock to true only if it is currently false.
// Returns ErrPreconditionFailed when the book exists but is already out of stock.
func (db *DB) MarkBorrowed(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	book, err := db.updateBook(ctx,
		bson.M{"_id": id, "nonstock": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"nonstock": true}},
	)
	if !errors.Is(err, ErrNotFound) {
		return book, err
	}
	n, cerr := db.Books().CountDocuments(ctx, bson.M{"_id": id})
	if cerr != nil {
		return nil, cerr
	}
	if n > 0 {
		return nil, ErrPreconditionFailed
	}
	return nil, ErrNotFound
}

func (db *DB) SetCoverKey(ctx context.Context, id primitive.ObjectID, key string) (*models.Book, error) {
	return db.updateBook(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"coverKey": key}})
}

// PullUserReferences removes userID from likes and reviews on every book. Returns the number of books touched.
func (db *DB) PullUserReferences(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := db.Books().UpdateMany(ctx,
		bson.M{"$or": bson.A{bson.M{"likes": userID}, bson.M{"reviews.userId": userID}}},
		bson.M{
			"$pull": bson.M{"likes": userID, "reviews": bson.M{"userId": userID}},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
